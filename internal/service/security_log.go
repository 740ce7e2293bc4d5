package service

import (
	"context"
	"encoding/json"

	"radportal/internal/entity"
	"radportal/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

func logSecurity(
	ctx context.Context,
	repo repository.SecurityLogRepository,
	userID *uuid.UUID,
	email string,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) error {
	if repo == nil {
		return nil
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		payload = datatypes.JSON(bytes)
	}

	log := &entity.SecurityLog{
		UserID:    userID,
		Email:     optionalString(email),
		IPAddress: ipAddress,
		Action:    action,
		Metadata:  payload,
	}
	return repo.Log(ctx, log)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
