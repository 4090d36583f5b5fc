// Package handler exposes the summarization use case as an API Gateway
// Lambda handler.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"chatsum/internal/domain"
	"chatsum/internal/extract"
	"chatsum/internal/session"
	"chatsum/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type UseCase interface {
	Submit(ctx context.Context, sess *session.Session, in usecase.SubmitInput) usecase.Result
	Clear(sess *session.Session)
	History(sess *session.Session) []domain.ChatTurn
}

type Handler struct {
	uc       UseCase
	sessions *session.Store
}

type fileRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
}

type summarizeRequest struct {
	Text           string       `json:"text"`
	ConversationID string       `json:"conversationId"`
	File           *fileRequest `json:"file,omitempty"`
}

type clearRequest struct {
	ConversationID string `json:"conversationId"`
}

type noticeResponse struct {
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type summarizeResponse struct {
	ConversationID string            `json:"conversationId"`
	Summary        string            `json:"summary,omitempty"`
	Notices        []noticeResponse  `json:"notices"`
	History        []domain.ChatTurn `json:"history"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewHandler(uc UseCase, sessions *session.Store) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("handler: session store must not be nil")
	}
	return &Handler{uc: uc, sessions: sessions}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := slog.With("correlation_id", correlationID, "method", req.HTTPMethod, "path", req.Path)

	defer func() {
		if p := recover(); p != nil {
			logger.ErrorContext(ctx, "handler panicked", "panic", p)
			resp = errorJSON(http.StatusInternalServerError, usecase.ErrorInternal, "")
			err = nil
		}
		if resp.Headers == nil {
			resp.Headers = map[string]string{}
		}
		resp.Headers[correlationHeader] = correlationID
		logger.InfoContext(ctx, "request handled", "status", resp.StatusCode)
	}()

	body, decErr := requestBody(req)
	if decErr != nil {
		return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidInput, "body is not valid base64"), nil
	}

	route := req.HTTPMethod + " " + strings.TrimRight(req.Path, "/")
	switch route {
	case http.MethodPost + " /summarize":
		return h.summarize(ctx, body), nil
	case http.MethodPost + " /clear":
		return h.clear(body), nil
	default:
		return jsonResponse(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"}), nil
	}
}

func (h *Handler) summarize(ctx context.Context, body []byte) events.APIGatewayProxyResponse {
	var in summarizeRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidInput, "body must be a JSON object")
	}

	submit := usecase.SubmitInput{Text: in.Text}
	if in.File != nil {
		data, err := base64.StdEncoding.DecodeString(in.File.Data)
		if err != nil {
			return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidInput, "file.data must be base64")
		}
		submit.Upload = &extract.Upload{
			Filename:    in.File.Name,
			ContentType: in.File.ContentType,
			Data:        data,
		}
	}

	sess, _ := h.sessions.GetOrCreate(in.ConversationID)
	res := h.uc.Submit(ctx, sess, submit)

	return jsonResponse(http.StatusOK, summarizeResponse{
		ConversationID: sess.ID,
		Summary:        res.Summary,
		Notices:        toNotices(res.Notices),
		History:        nonNilTurns(h.uc.History(sess)),
	})
}

func (h *Handler) clear(body []byte) events.APIGatewayProxyResponse {
	var in clearRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidInput, "body must be a JSON object")
	}
	if strings.TrimSpace(in.ConversationID) == "" {
		return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidInput, "conversationId is required")
	}

	sess, ok := h.sessions.Get(in.ConversationID)
	if !ok {
		return jsonResponse(http.StatusNotFound, errorResponse{
			Error:   "NOT_FOUND",
			Message: "conversation not found or expired",
		})
	}
	h.uc.Clear(sess)
	return jsonResponse(http.StatusOK, summarizeResponse{
		ConversationID: sess.ID,
		Notices:        []noticeResponse{},
		History:        []domain.ChatTurn{},
	})
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if req.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(req.Body)
	}
	return []byte(req.Body), nil
}

func toNotices(notices []usecase.Notice) []noticeResponse {
	out := make([]noticeResponse, 0, len(notices))
	for _, n := range notices {
		code := ""
		if n.Err != nil {
			code = string(n.Err.Code)
		}
		out = append(out, noticeResponse{Level: string(n.Level), Code: code, Message: n.Message})
	}
	return out
}

func nonNilTurns(turns []domain.ChatTurn) []domain.ChatTurn {
	if turns == nil {
		return []domain.ChatTurn{}
	}
	return turns
}

func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func errorJSON(status int, code usecase.ErrorCode, message string) events.APIGatewayProxyResponse {
	return jsonResponse(status, errorResponse{Error: string(code), Message: message})
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
