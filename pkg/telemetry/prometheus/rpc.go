// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prometheus

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twitchtv/twirp"
)

var (
	rpcRequestTime *prometheus.HistogramVec
	rpcErrorTotal  *prometheus.CounterVec
)

func initRPCStats(reg prometheus.Registerer) {
	labels := []string{"service", "method"}

	rpcRequestTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: livekitNamespace,
		Subsystem: sdkSubsystem,
		Name:      "rpc_request_time_ms",
		Buckets:   []float64{10, 50, 100, 300, 500, 1000, 1500, 2000, 5000, 10000},
	}, labels)
	rpcErrorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: livekitNamespace,
		Subsystem: sdkSubsystem,
		Name:      "rpc_error_total",
	}, append(labels, "code"))

	reg.MustRegister(rpcRequestTime)
	reg.MustRegister(rpcErrorTotal)
}

type rpcStartKey struct{}

// TwirpClientHooks times outbound twirp calls and counts their errors by code.
func TwirpClientHooks() *twirp.ClientHooks {
	return &twirp.ClientHooks{
		RequestPrepared: func(ctx context.Context, _ *http.Request) (context.Context, error) {
			return context.WithValue(ctx, rpcStartKey{}, time.Now()), nil
		},
		ResponseReceived: func(ctx context.Context) {
			if !initialized.Load() {
				return
			}
			start, ok := ctx.Value(rpcStartKey{}).(time.Time)
			if !ok {
				return
			}
			service, method := rpcNames(ctx)
			rpcRequestTime.WithLabelValues(service, method).Observe(float64(time.Since(start).Milliseconds()))
		},
		Error: func(ctx context.Context, err twirp.Error) {
			if !initialized.Load() {
				return
			}
			service, method := rpcNames(ctx)
			rpcErrorTotal.WithLabelValues(service, method, string(err.Code())).Inc()
		},
	}
}

func rpcNames(ctx context.Context) (string, string) {
	service, _ := twirp.ServiceName(ctx)
	method, _ := twirp.MethodName(ctx)
	return service, method
}
