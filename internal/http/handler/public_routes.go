package handler

import (
	"context"
	"net/http"

	"notekeep/internal/contract"
	"notekeep/internal/service"
	"notekeep/internal/utils/apierror"

	"github.com/labstack/echo/v4"
)

type PublicService interface {
	GetPublicNote(ctx context.Context, publicID string) (*contract.PublicNoteResponse, apierror.ErrorResponse)
	GetPublicFile(ctx context.Context, publicFileID string) (*service.PublicFileContent, apierror.ErrorResponse)
}

// DefaultPublicRoute serves the unauthenticated read side of shares. A miss
// here can mean "never shared", "expired" or "revoked" and all three answer
// the same way on purpose.
type DefaultPublicRoute struct {
	PublicService PublicService
}

func NewPublicDefault(publicService PublicService) *DefaultPublicRoute {
	return &DefaultPublicRoute{PublicService: publicService}
}

func (p *DefaultPublicRoute) GetPublicNote(c echo.Context) error {
	publicID := c.Param("publicId")
	if publicID == "" {
		return c.JSON(http.StatusBadRequest, apierror.InvalidIDError)
	}

	note, apierr := p.PublicService.GetPublicNote(c.Request().Context(), publicID)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, note)
}

func (p *DefaultPublicRoute) GetPublicFile(c echo.Context) error {
	publicFileID := c.Param("publicId")
	if publicFileID == "" {
		return c.JSON(http.StatusBadRequest, apierror.InvalidIDError)
	}

	file, apierr := p.PublicService.GetPublicFile(c.Request().Context(), publicFileID)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	disposition := `inline`
	if file.FileName != "" {
		disposition = `inline; filename="` + file.FileName + `"`
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	return c.Blob(http.StatusOK, file.ContentType, file.Data)
}
