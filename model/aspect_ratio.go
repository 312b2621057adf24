package model

// AspectRatioOption describes one of the fixed output formats the provider
// accepts, with its pixel dimensions and credit cost.
type AspectRatioOption struct {
	Value  string  `json:"value"`
	Label  string  `json:"label"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Cost   float64 `json:"cost"`
}

const DefaultAspectRatio = "16:9"

var AspectRatioOptions = []AspectRatioOption{
	{Value: "16:9", Label: "Landscape (16:9)", Width: 1920, Height: 1080, Cost: 1.0},
	{Value: "9:16", Label: "Portrait (9:16)", Width: 1080, Height: 1920, Cost: 1.0},
	{Value: "1:1", Label: "Square (1:1)", Width: 1080, Height: 1080, Cost: 0.8},
	{Value: "4:3", Label: "Classic (4:3)", Width: 1440, Height: 1080, Cost: 0.9},
	{Value: "3:4", Label: "Portrait Classic (3:4)", Width: 1080, Height: 1440, Cost: 0.9},
	{Value: "21:9", Label: "Ultrawide (21:9)", Width: 2560, Height: 1080, Cost: 1.2},
	{Value: "9:21", Label: "Portrait Ultrawide (9:21)", Width: 1080, Height: 2520, Cost: 1.2},
}

func GetAspectRatioOption(aspectRatio string) (AspectRatioOption, bool) {
	for _, option := range AspectRatioOptions {
		if option.Value == aspectRatio {
			return option, true
		}
	}
	return AspectRatioOption{}, false
}

// CalculateCost returns the credit cost for a ratio. Unknown ratios fall back
// to a baseline cost of 1.0 instead of failing.
func CalculateCost(aspectRatio string) float64 {
	if option, ok := GetAspectRatioOption(aspectRatio); ok {
		return option.Cost
	}
	return 1.0
}
