package http

import (
	"net/http"

	httptrace "github.com/DataDog/dd-trace-go/contrib/net/http/v2"
	"github.com/go-resty/resty/v2"

	"github.com/rainbow-me/gateway-correlation/common/logger"
	interceptors "github.com/rainbow-me/gateway-correlation/http/interceptors/resty"
)

// NewRestyWithClient builds a resty client on top of client whose requests carry the
// trace and correlation id of their context. A nil client means http.DefaultClient's
// transport settings.
func NewRestyWithClient(client *http.Client, log *logger.Logger, opt ...interceptors.InterceptorOpt) *resty.Client {
	if client == nil {
		client = &http.Client{}
	}
	restyClient := resty.NewWithClient(client)
	interceptors.InjectInterceptors(restyClient, opt...)

	if log != nil {
		restyClient.SetLogger((*logger.Adapter)(log))
	}
	return restyClient
}

// NewTracedClient wraps client's transport so every round trip is also recorded as a
// Datadog span at the transport level.
func NewTracedClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	return httptrace.WrapClient(client)
}
