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

package dispatcher

import (
	"net/http"

	"github.com/go-logr/logr"

	"github.com/kserve/tensorwire/pkg/constants"
)

// HealthHandler answers health probes and hands every other request to
// NextHandler.
type HealthHandler struct {
	Log         logr.Logger
	NextHandler http.Handler
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == constants.HealthPath && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		h.Log.V(1).Info("Health request", "remoteAddr", r.RemoteAddr)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.NextHandler.ServeHTTP(w, r)
}
