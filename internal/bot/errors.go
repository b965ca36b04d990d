package bot

import (
	"errors"

	"travelbook/internal/domain"
)

func errorMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, domain.ErrAdminRequired):
		return "⛔ This bot is only for TravelBook administrators."
	case errors.Is(err, domain.ErrAlreadyDecided):
		return "⚠️ This provider has already been reviewed by another admin."
	case errors.Is(err, domain.ErrNotAProvider):
		return "⚠️ This account is not a provider."
	case errors.Is(err, domain.ErrIdentityNotFound):
		return "⚠️ Provider not found. Check the ID and try again."
	}

	// Default error message
	return "❌ Something went wrong while processing your request. Please try again later."
}
