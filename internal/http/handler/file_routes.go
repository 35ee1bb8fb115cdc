package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"

	"notekeep/internal/contract"
	"notekeep/internal/infrastructure/aws/storage"
	"notekeep/internal/utils"
	"notekeep/internal/utils/apierror"

	"github.com/labstack/echo/v4"
)

type FileService interface {
	Upload(ctx context.Context, fileHeader *multipart.FileHeader) (*contract.UploadResponse, apierror.ErrorResponse)
	Get(ctx context.Context, id int64) (*storage.Object, apierror.ErrorResponse)
}

type DefaultFileRoute struct {
	FileService FileService
}

func NewFileDefault(fileService FileService) *DefaultFileRoute {
	return &DefaultFileRoute{FileService: fileService}
}

func (f *DefaultFileRoute) UploadFile(c echo.Context) error {
	if _, cerr := utils.GetSessionFromContext(c); cerr != nil {
		return c.JSON(cerr.Code(), cerr)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MissingFileError)
	}

	resp, apierr := f.FileService.Upload(c.Request().Context(), fileHeader)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (f *DefaultFileRoute) GetFile(c echo.Context) error {
	if _, cerr := utils.GetSessionFromContext(c); cerr != nil {
		return c.JSON(cerr.Code(), cerr)
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	obj, apierr := f.FileService.Get(c.Request().Context(), id)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, "inline")
	return c.Blob(http.StatusOK, obj.ContentType, obj.Data)
}
