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

package constants

// tensorwire Constants
var (
	TensorWireName = "tensorwire"
	EnvPrefix      = "TENSORWIRE"
)

// Header Constants
const (
	IdentityHeader    = "X-Request-ID"
	ContentTypeHeader = "Content-Type"
)

// Content types. Frames carry their own media type so that clients can tell
// them apart from raw bytes returned by a handler.
const (
	FrameContentType  = "application/vnd.tensorwire.frame"
	BinaryContentType = "application/octet-stream"
	TextContentType   = "text/plain; charset=utf-8"
	JSONContentType   = "application/json"
)

// Routing Constants
const (
	DefaultRoute = "default"
	HealthPath   = "/healthz"
	MetricsPath  = "/metrics"
)

// Server Constants
const (
	DefaultPort          = 8080
	DefaultMaxFrameBytes = 256 * 1024 * 1024
)

// Metrics Constants
const (
	MetricsNamespace = "tensorwire"
)

// EnvName returns the prefixed environment variable name for key,
// e.g. EnvName("PORT") is "TENSORWIRE_PORT".
func EnvName(key string) string {
	return EnvPrefix + "_" + key
}
