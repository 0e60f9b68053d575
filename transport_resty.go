package axnext

import (
	"context"

	"github.com/go-resty/resty/v2"
)

// RestyTransport sends requests with a resty client. Configure retries on
// the resty client with care: the pipeline already owns the 401 retry.
type RestyTransport struct {
	client *resty.Client
}

var _ Transport = (*RestyTransport)(nil)

// NewRestyTransport returns a transport over client, or over resty.New when
// client is nil.
func NewRestyTransport(client *resty.Client) *RestyTransport {
	if client == nil {
		client = resty.New()
	}
	return &RestyTransport{client: client}
}

func (t *RestyTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	r := t.client.R().
		SetContext(ctx).
		SetHeaderMultiValues(req.Header).
		SetQueryParamsFromValues(req.Params)
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Data:       resp.Body(),
	}, nil
}
