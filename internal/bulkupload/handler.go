package bulkupload

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	apperrors "compact-connect-backend/internal/errors"
)

type uploadResponse struct {
	Upload struct {
		URL     string            `json:"url"`
		Method  string            `json:"method"`
		Key     string            `json:"key"`
		Headers map[string]string `json:"headers"`
		Expires time.Time         `json:"expires"`
	} `json:"upload"`
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// HandleAPIRequest serves GET /v1/compacts/{compact}/jurisdictions/{jurisdiction}/licenses/bulk-upload.
func (p *Presigner) HandleAPIRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	upload, err := p.UploadURL(ctx, req.PathParameters["compact"], req.PathParameters["jurisdiction"])
	if err != nil {
		status := apperrors.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			p.logger.Error("Failed to issue bulk upload URL", zap.Error(err))
		}
		return jsonResponse(status, errorResponse{
			Message: apperrors.PublicMessage(err),
			Code:    apperrors.Code(err),
		})
	}

	var resp uploadResponse
	resp.Upload.URL = upload.URL
	resp.Upload.Method = upload.Method
	resp.Upload.Key = upload.Key
	resp.Upload.Expires = upload.Expires
	resp.Upload.Headers = make(map[string]string, len(upload.SignedHeader))
	for name := range upload.SignedHeader {
		resp.Upload.Headers[name] = upload.SignedHeader.Get(name)
	}
	return jsonResponse(http.StatusOK, resp)
}

func jsonResponse(status int, body any) (events.APIGatewayProxyResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(raw),
	}, nil
}
