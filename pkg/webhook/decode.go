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

package webhook

import (
	"io"
	"reflect"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
	"github.com/modern-go/reflect2"
	"github.com/pkg/errors"
)

// eventJSON decodes payloads the way senders produce them: field names match
// case-insensitively and numbers may arrive quoted, as protobuf JSON does for 64-bit values.
var eventJSON = func() jsoniter.API {
	api := jsoniter.Config{
		EscapeHTML:             true,
		ValidateJsonRawMessage: true,
		CaseSensitive:          false,
	}.Froze()
	api.RegisterExtension(&quotedNumberExtension{})
	return api
}()

func decodeEvent(body []byte) (*Event, error) {
	event := &Event{}
	if err := eventJSON.Unmarshal(body, event); err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}

	kind, err := ParseEventKind(string(event.Event))
	if err != nil {
		return nil, err
	}
	event.Event = kind
	return event, nil
}

func encodeEvent(event *Event) ([]byte, error) {
	return eventJSON.Marshal(event)
}

type quotedNumberExtension struct {
	jsoniter.DummyExtension
}

func (e *quotedNumberExtension) DecorateDecoder(typ reflect2.Type, decoder jsoniter.ValDecoder) jsoniter.ValDecoder {
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return &quotedNumberDecoder{decoder: decoder}
	default:
		return decoder
	}
}

type quotedNumberDecoder struct {
	decoder jsoniter.ValDecoder
}

func (d *quotedNumberDecoder) Decode(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
	if iter.WhatIsNext() != jsoniter.StringValue {
		d.decoder.Decode(ptr, iter)
		return
	}

	str := iter.ReadString()
	if str == "" {
		// leave the zero value
		return
	}
	sub := iter.Pool().BorrowIterator([]byte(str))
	defer iter.Pool().ReturnIterator(sub)
	d.decoder.Decode(ptr, sub)
	if sub.Error == nil {
		// anything left after the number must be whitespace
		sub.WhatIsNext()
		if sub.Error == nil {
			iter.ReportError("decode quoted number", "invalid number "+str)
			return
		}
	}
	if sub.Error != io.EOF {
		iter.ReportError("decode quoted number", sub.Error.Error())
	}
}
