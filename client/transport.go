package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-request/logger"
	"github.com/saiset-co/sai-request/types"
	"github.com/saiset-co/sai-request/utils"
)

// Transport issues one attempt of a request. Implementations must honor ctx
// cancellation by returning a cancelled *types.RequestError.
type Transport interface {
	Issue(ctx context.Context, desc *types.RequestDescriptor) (*types.Envelope, error)
}

type FastHTTPTransport struct {
	logger  types.Logger
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	breaker *CircuitBreaker
}

func NewFastHTTPTransport(logger types.Logger, config *types.ClientConfig, breaker *CircuitBreaker) *FastHTTPTransport {
	timeout := types.DefaultTimeout
	baseURL := ""
	if config != nil {
		baseURL = config.BaseURL
		if config.Timeout > 0 {
			timeout = config.Timeout
		}
	}

	return &FastHTTPTransport{
		logger:  logger,
		baseURL: baseURL,
		timeout: timeout,
		breaker: breaker,
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
}

// WithDial swaps the dialer, used to route the client through an in-memory
// listener.
func (t *FastHTTPTransport) WithDial(dial fasthttp.DialFunc) *FastHTTPTransport {
	t.client.Dial = dial
	return t
}

func (t *FastHTTPTransport) Issue(ctx context.Context, desc *types.RequestDescriptor) (*types.Envelope, error) {
	if !t.breaker.CanExecute() {
		return nil, types.NewNetworkError(0, "", types.ErrCircuitBreakerOpen)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	if err := t.buildRequest(req, desc); err != nil {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		return nil, types.NewApplicationError(0, err.Error())
	}

	timeout := t.timeout
	if desc.Options.Timeout > 0 {
		timeout = desc.Options.Timeout
	}

	done := make(chan error, 1)
	go func() {
		done <- t.client.DoTimeout(req, resp, timeout)
	}()

	select {
	case err := <-done:
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)
		return t.settle(desc, resp, err)
	case <-ctx.Done():
		go func() {
			<-done
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
		}()
		return nil, types.NewCancelledError(context.Cause(ctx))
	}
}

func (t *FastHTTPTransport) Close() {
	t.client.CloseIdleConnections()
}

func (t *FastHTTPTransport) buildRequest(req *fasthttp.Request, desc *types.RequestDescriptor) error {
	uri := utils.JoinURL(t.baseURL, desc.URL)
	if query := utils.EncodeQuery(desc.Query); query != "" {
		sep := "?"
		if strings.Contains(uri, "?") {
			sep = "&"
		}
		uri += sep + query
	}

	req.SetRequestURI(uri)
	req.Header.SetMethod(strings.ToUpper(desc.Method))
	req.Header.Set(fasthttp.HeaderAcceptEncoding, "br, gzip")

	for key, value := range desc.Options.Headers {
		req.Header.Set(key, value)
	}

	switch body := desc.Body.(type) {
	case nil:
	case *types.Multipart:
		return writeMultipart(req, body)
	case []byte:
		req.SetBody(body)
	default:
		data, err := utils.Marshal(body)
		if err != nil {
			return types.WrapError(err, "failed to marshal request body")
		}
		req.SetBody(data)
		req.Header.SetContentType("application/json")
	}

	return nil
}

func writeMultipart(req *fasthttp.Request, upload *types.Multipart) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range upload.Fields {
		if err := writer.WriteField(key, value); err != nil {
			return types.WrapError(err, "failed to write multipart field")
		}
	}

	fieldName := upload.FieldName
	if fieldName == "" {
		fieldName = "file"
	}

	part, err := writer.CreateFormFile(fieldName, upload.FileName)
	if err != nil {
		return types.WrapError(err, "failed to create multipart file")
	}
	if _, err = part.Write(upload.Content); err != nil {
		return types.WrapError(err, "failed to write multipart file")
	}
	if err = writer.Close(); err != nil {
		return types.WrapError(err, "failed to close multipart body")
	}

	req.SetBody(buf.Bytes())
	req.Header.SetContentType(writer.FormDataContentType())

	return nil
}

func (t *FastHTTPTransport) settle(desc *types.RequestDescriptor, resp *fasthttp.Response, err error) (*types.Envelope, error) {
	if err != nil {
		t.breaker.RecordFailure()
		t.logger.Warn("Transport failure", append(logger.Request(desc), zap.Error(err))...)
		return nil, types.NewNetworkError(0, "", errors.WithStack(err))
	}

	status := resp.StatusCode()

	body, err := decodeBody(resp)
	if err != nil {
		return nil, &types.RequestError{
			Kind:    types.KindApplication,
			Code:    status,
			Message: "failed to decode response body",
			Err:     types.WrapError(types.ErrClientResponseInvalid, err.Error()),
		}
	}

	if IsBreakerFailure(status) {
		t.breaker.RecordFailure()
		return nil, types.NewNetworkError(status, messageOf(body), types.Errorf(types.ErrClientRequestFailed, "HTTP %d", status))
	}

	t.breaker.RecordSuccess()

	if status < 200 || status >= 300 {
		return nil, types.NewApplicationError(status, messageOf(body))
	}

	if desc.Options.RawResponse {
		return &types.Envelope{Code: types.CodeSuccess, Data: body}, nil
	}

	var envelope types.Envelope
	if err = utils.Unmarshal(body, &envelope); err != nil {
		return nil, &types.RequestError{
			Kind:    types.KindApplication,
			Code:    status,
			Message: "response is not a valid envelope",
			Err:     types.WrapError(types.ErrClientResponseInvalid, err.Error()),
		}
	}

	return &envelope, nil
}

func decodeBody(resp *fasthttp.Response) ([]byte, error) {
	switch string(bytes.ToLower(resp.Header.ContentEncoding())) {
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(resp.Body())))
	case "gzip":
		return resp.BodyGunzip()
	default:
		return utils.CopyBytes(resp.Body()), nil
	}
}

func messageOf(body []byte) string {
	var envelope types.Envelope
	if len(body) == 0 || utils.Unmarshal(body, &envelope) != nil {
		return ""
	}
	return envelope.Message
}
