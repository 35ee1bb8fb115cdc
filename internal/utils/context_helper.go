package utils

import (
	"notekeep/internal/domain/entity"
	"notekeep/internal/utils/apierror"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

func GetSessionFromContext(c echo.Context) (*entity.Session, apierror.ErrorResponse) {
	val := c.Get("session")
	if val == nil {
		log.Warnf("route %s attempted to read nil session from context", c.Request().URL)
		return nil, apierror.UnauthorizedError
	}

	session, ok := val.(*entity.Session)
	if !ok {
		log.Warnf("expected session type at 'session' context key, got %v", val)
		return nil, apierror.InternalServerError
	}
	return session, nil
}
