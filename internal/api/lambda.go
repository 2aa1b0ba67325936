package api

import (
	"context"
	"encoding/base64"

	"github.com/aws/aws-lambda-go/events"

	"smart-bin-backend/internal/ingest"
)

// LambdaHandler serves the ingest endpoint behind a Lambda function URL.
func LambdaHandler(svc *ingest.Service) func(context.Context, events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	return func(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
		body := []byte(req.Body)
		if req.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				body = nil
			} else {
				body = decoded
			}
		}

		resp := svc.Handle(ctx, ingest.Request{
			Method: req.RequestContext.HTTP.Method,
			Body:   body,
		})
		return events.LambdaFunctionURLResponse{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
			Body:       resp.Body,
		}, nil
	}
}
