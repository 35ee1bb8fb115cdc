package handler

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"notekeep/internal/contract"
	"notekeep/internal/domain/entity"
	"notekeep/internal/infrastructure/aws/storage"
	"notekeep/internal/utils"
	"notekeep/internal/utils/apierror"

	"github.com/labstack/echo/v4"
)

type NoteService interface {
	GetNotes(actor *entity.Session, filter *entity.NoteFilter) (*contract.ListNotesResponse, apierror.ErrorResponse)
	GetNote(actor *entity.Session, noteID int64) (*contract.NoteResponse, apierror.ErrorResponse)
	CreateNote(ctx context.Context, actor *entity.Session, req *contract.CreateNoteRequest, files []*multipart.FileHeader) (*contract.NoteResponse, apierror.ErrorResponse)
	UpdateNote(ctx context.Context, actor *entity.Session, noteID int64, req *contract.UpdateNoteRequest, files []*multipart.FileHeader) (*contract.NoteResponse, bool, apierror.ErrorResponse)
	DeleteNote(ctx context.Context, actor *entity.Session, noteID int64) apierror.ErrorResponse
	GetAttachment(ctx context.Context, actor *entity.Session, noteID, fileID int64) (*storage.Object, *entity.Attachment, apierror.ErrorResponse)
}

type MergeService interface {
	Merge(ctx context.Context, actor *entity.Session, req *contract.MergeNotesRequest) (*contract.NoteResponse, apierror.ErrorResponse)
}

type DefaultNoteRoute struct {
	NoteService  NoteService
	MergeService MergeService
}

func NewNoteDefault(noteService NoteService, mergeService MergeService) *DefaultNoteRoute {
	return &DefaultNoteRoute{NoteService: noteService, MergeService: mergeService}
}

func (n *DefaultNoteRoute) GetNotes(c echo.Context) error {
	session, cerr := utils.GetSessionFromContext(c)
	if cerr != nil {
		return c.JSON(cerr.Code(), cerr)
	}

	filter, apierr := parseNoteFilter(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp, apierr := n.NoteService.GetNotes(session, filter)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, resp)
}

func (n *DefaultNoteRoute) GetNote(c echo.Context) error {
	session, cerr := utils.GetSessionFromContext(c)
	if cerr != nil {
		return c.JSON(cerr.Code(), cerr)
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	note, apierr := n.NoteService.GetNote(session, id)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, note)
}

// CreateNote accepts either a plain JSON body or a multipart form carrying a
// 'json_payload' field plus any number of 'files' parts.
func (n *DefaultNoteRoute) CreateNote(c echo.Context) error {
	session, cerr := utils.GetSessionFromContext(c)
	if cerr != nil {
		return c.JSON(cerr.Code(), cerr)
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)

	var req contract.CreateNoteRequest
	var files []*multipart.FileHeader

	switch {
	case strings.HasPrefix(contentType, echo.MIMEApplicationJSON):
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, apierror.MalformedJSONError)
		}

	case strings.HasPrefix(contentType, echo.MIMEMultipartForm):
		var apierr apierror.ErrorResponse
		files, apierr = formFiles(c)
		if apierr != nil {
			return c.JSON(apierr.Code(), apierr)
		}
		if apierr := bindMultipartJSON(c, &req); apierr != nil {
			return c.JSON(apierr.Code(), apierr)
		}

	default:
		return c.JSON(http.StatusUnsupportedMediaType, apierror.InvalidMediaTypeError)
	}

	note, apierr := n.NoteService.CreateNote(c.Request().Context(), session, &req, files)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusCreated, note)
}

func (n *DefaultNoteRoute) UpdateNote(c echo.Context) error {
	session, cerr := utils.GetSessionFromContext(c)
	if cerr != nil {
		return c.JSON(cerr.Code(), cerr)
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)

	var req contract.UpdateNoteRequest
	var files []*multipart.FileHeader

	switch {
	case strings.HasPrefix(contentType, echo.MIMEApplicationJSON):
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, apierror.MalformedJSONError)
		}

	case strings.HasPrefix(contentType, echo.MIMEMultipartForm):
		var apierr apierror.ErrorResponse
		files, apierr = formFiles(c)
		if apierr != nil {
			return c.JSON(apierr.Code(), apierr)
		}
		if apierr := bindMultipartJSON(c, &req); apierr != nil {
			return c.JSON(apierr.Code(), apierr)
		}

	default:
		return c.JSON(http.StatusUnsupportedMediaType, apierror.InvalidMediaTypeError)
	}

	note, deleted, apierr := n.NoteService.UpdateNote(c.Request().Context(), session, id, &req, files)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	if deleted {
		return c.JSON(http.StatusOK, &contract.DeletedResponse{Deleted: true})
	}
	return c.JSON(http.StatusOK, note)
}

func (n *DefaultNoteRoute) DeleteNote(c echo.Context) error {
	session, cerr := utils.GetSessionFromContext(c)
	if cerr != nil {
		return c.JSON(cerr.Code(), cerr)
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	if apierr := n.NoteService.DeleteNote(c.Request().Context(), session, id); apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.NoContent(http.StatusNoContent)
}

func (n *DefaultNoteRoute) MergeNotes(c echo.Context) error {
	session, cerr := utils.GetSessionFromContext(c)
	if cerr != nil {
		return c.JSON(cerr.Code(), cerr)
	}

	var req contract.MergeNotesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedJSONError)
	}

	note, apierr := n.MergeService.Merge(c.Request().Context(), session, &req)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, note)
}

func (n *DefaultNoteRoute) GetAttachment(c echo.Context) error {
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

	obj, att, apierr := n.NoteService.GetAttachment(c.Request().Context(), session, noteID, fileID)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+att.Name+`"`)
	return c.Blob(http.StatusOK, obj.ContentType, obj.Data)
}

func parseNoteFilter(c echo.Context) (*entity.NoteFilter, apierror.ErrorResponse) {
	filter := &entity.NoteFilter{
		Tag:       c.QueryParam("tag"),
		Favorites: c.QueryParam("favorites") == "true",
		Archived:  c.QueryParam("archived") == "true",
	}

	for name, target := range map[string]*int64{"from": &filter.From, "to": &filter.To} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		val, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apierror.NewInvalidParamTypeError(name, "int")
		}
		*target = val
	}

	if raw := c.QueryParam("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apierror.NewInvalidParamTypeError("page", "int")
		}
		filter.Page = page
	}
	return filter, nil
}

func formFiles(c echo.Context) ([]*multipart.FileHeader, apierror.ErrorResponse) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apierror.MalformedJSONError
	}
	return form.File["files"], nil
}

func bindMultipartJSON(c echo.Context, target any) apierror.ErrorResponse {
	payload := strings.TrimSpace(c.FormValue("json_payload"))
	if payload == "" {
		return apierror.FormJSONRequiredError
	}

	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return apierror.MalformedJSONError
	}
	return nil
}
