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

package logger

import (
	"context"
	"fmt"
	"strings"
)

// PrintfAdapter exposes a Logger to libraries that log through Printf, such as the redis client.
// Messages are logged at debug level, those mentioning a failure at warn level.
type PrintfAdapter struct {
	logger Logger
}

func NewPrintfAdapter(l Logger) *PrintfAdapter {
	return &PrintfAdapter{logger: l}
}

func (l *PrintfAdapter) Printf(_ context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
		l.logger.Warnw(msg, nil)
		return
	}
	l.logger.Debugw(msg)
}
