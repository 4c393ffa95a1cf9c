/*
Copyright 2026 The KServe Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package client

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// DefaultConnTimeout bounds dialing a dispatcher.
const DefaultConnTimeout = 2 * time.Second

const keepAlive = 5 * time.Second

func newDialer(connTimeout time.Duration) *net.Dialer {
	return &net.Dialer{Timeout: connTimeout, KeepAlive: keepAlive}
}

// NewHTTPTransport returns the HTTP/1.1 transport a Client uses by default.
func NewHTTPTransport(connTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           newDialer(connTimeout).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       keepAlive,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// NewH2CTransport returns a transport for cleartext HTTP/2. It dials plain
// TCP where http2.Transport would start a TLS handshake, so http:// endpoints
// served through h2c.NewHandler are reached over HTTP/2 directly.
func NewH2CTransport(connTimeout time.Duration) *http2.Transport {
	dialer := newDialer(connTimeout)
	return &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}
}
