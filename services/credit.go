package services

import (
	"errors"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumen-studio/aperture_api/dto"
	"github.com/lumen-studio/aperture_api/shared"
)

// CreditService is the ledger in front of the user credit balance. Admin
// accounts always pass the check and are never charged; the requested cost is
// still recorded on the job for audit.
type CreditService struct {
	context.DefaultService

	sqlSvc *PostgresService
}

const CREDIT_SVC = "credit_svc"

func (svc CreditService) Id() string {
	return CREDIT_SVC
}

func (svc *CreditService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *CreditService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	return nil
}

// CheckAndCharge verifies the user can afford cost and deducts it in a single
// atomic statement. Two concurrent generations by the same user can never
// both pass a balance they can only afford once.
func (svc *CreditService) CheckAndCharge(userID string, cost float64) error {
	user, err := svc.sqlSvc.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NewNotFoundError("User not found")
		}
		return svc.sqlSvc.HandleError(err)
	}

	if user.IsAdmin {
		return nil
	}

	deducted, err := svc.sqlSvc.DeductCredits(userID, cost)
	if err != nil {
		return svc.sqlSvc.HandleError(err)
	}
	if !deducted {
		return shared.NewInsufficientCreditsError("Insufficient credits to generate image")
	}

	return nil
}

// Refund returns a charge to a standard account. Admin accounts were never
// charged, so there is nothing to return.
func (svc *CreditService) Refund(userID string, cost float64) {
	user, err := svc.sqlSvc.GetUserByID(userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Failed to load user for credit refund")
		return
	}
	if user.IsAdmin {
		return
	}

	if _, err := svc.sqlSvc.AddCredits(userID, cost); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id": userID,
			"amount":  cost,
		}).Error("Failed to refund credits")
	}
}

// RecordGeneration bumps the lifetime generation counters. Called only after
// a successful charge and job creation.
func (svc *CreditService) RecordGeneration(userID string) error {
	return svc.sqlSvc.RecordGeneration(userID)
}

func (svc *CreditService) GetBalance(userID string) (*dto.CreditBalanceResponse, error) {
	user, err := svc.sqlSvc.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("User not found")
		}
		return nil, svc.sqlSvc.HandleError(err)
	}

	return &dto.CreditBalanceResponse{
		Credits:          user.Credits,
		IsAdmin:          user.IsAdmin,
		TotalGenerations: user.TotalGenerations,
		LastGenerationAt: user.LastGenerationAt,
	}, nil
}

// GrantCredits adds credits to an account, admin operation.
func (svc *CreditService) GrantCredits(req dto.AddCreditsRequest) (*dto.CreditBalanceResponse, error) {
	updated, err := svc.sqlSvc.AddCredits(req.UserID, req.Amount)
	if err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}
	if !updated {
		return nil, shared.NewNotFoundError("User not found")
	}

	return svc.GetBalance(req.UserID)
}
