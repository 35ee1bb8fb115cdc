package handler

import (
	"context"
	"net/http"
	"strconv"

	"notekeep/internal/contract"
	"notekeep/internal/domain/entity"
	"notekeep/internal/utils"
	"notekeep/internal/utils/apierror"

	"github.com/labstack/echo/v4"
)

type ShareService interface {
	ShareNote(ctx context.Context, actor *entity.Session, noteID int64, ttlSeconds int64) (*contract.ShareNoteResponse, apierror.ErrorResponse)
	RenewShare(ctx context.Context, actor *entity.Session, noteID int64, publicID string, ttlSeconds int64) apierror.ErrorResponse
	RevokeShare(ctx context.Context, actor *entity.Session, noteID int64) apierror.ErrorResponse
	ShareFile(ctx context.Context, actor *entity.Session, noteID, fileID int64) (*contract.FileShareResponse, apierror.ErrorResponse)
}

type DefaultShareRoute struct {
	ShareService ShareService
	Validate     shareValidator
}

type shareValidator interface {
	Struct(s any) error
}

func NewShareDefault(shareService ShareService, validate shareValidator) *DefaultShareRoute {
	return &DefaultShareRoute{ShareService: shareService, Validate: validate}
}

// ShareNote creates (or returns) the note's share when the body carries no
// public id, and renews the named share when it does.
func (s *DefaultShareRoute) ShareNote(c echo.Context) error {
	session, cerr := utils.GetSessionFromContext(c)
	if cerr != nil {
		return c.JSON(cerr.Code(), cerr)
	}

	noteID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	req := contract.ShareNoteRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedJSONError)
	}
	if valerr := s.Validate.Struct(&req); valerr != nil {
		apierr := apierror.FromValidationError(valerr)
		return c.JSON(apierr.Code(), apierr)
	}

	ttlSeconds := int64(contract.DefaultShareTTLSeconds)
	if req.ExpirationTTL != nil {
		ttlSeconds = *req.ExpirationTTL
	}

	if req.PublicID != "" {
		apierr := s.ShareService.RenewShare(c.Request().Context(), session, noteID, req.PublicID, ttlSeconds)
		if apierr != nil {
			return c.JSON(apierr.Code(), apierr)
		}
		return c.JSON(http.StatusOK, &contract.SuccessResponse{Success: true})
	}

	resp, apierr := s.ShareService.ShareNote(c.Request().Context(), session, noteID, ttlSeconds)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *DefaultShareRoute) RevokeShare(c echo.Context) error {
	session, cerr := utils.GetSessionFromContext(c)
	if cerr != nil {
		return c.JSON(cerr.Code(), cerr)
	}

	noteID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	if apierr := s.ShareService.RevokeShare(c.Request().Context(), session, noteID); apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, &contract.SuccessResponse{Success: true})
}

func (s *DefaultShareRoute) ShareFile(c echo.Context) error {
	session, cerr := utils.GetSessionFromContext(c)
	if cerr != nil {
		return c.JSON(cerr.Code(), cerr)
	}

	noteID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}
	fileID, err := strconv.ParseInt(c.Param("fileId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("fileId", "int"))
	}

	resp, apierr := s.ShareService.ShareFile(c.Request().Context(), session, noteID, fileID)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, resp)
}
