// Copyright 2026 Palantir Technologies, Inc.
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

package httpmetrics

import (
	"bufio"
	"io"
	"net"
	"net/http"
)

// ProxyResponseWriter is a proxy around an http.ResponseWriter that records
// the status code and the number of bytes written.
type ProxyResponseWriter interface {
	http.ResponseWriter

	// Status returns the status code sent to the client or zero if the
	// handler has not written anything.
	Status() int

	// BytesWritten returns the total number of bytes sent to the client.
	BytesWritten() int64
}

// WrapWriter returns a ProxyResponseWriter for w. The result implements
// http.Flusher, http.Hijacker, and io.ReaderFrom if w implements all of them,
// or only http.Flusher if w implements that. Use http.NewResponseController
// to reach other optional methods of w.
func WrapWriter(w http.ResponseWriter) ProxyResponseWriter {
	_, fl := w.(http.Flusher)
	_, hj := w.(http.Hijacker)
	_, rf := w.(io.ReaderFrom)

	rw := recordingWriter{ResponseWriter: w}
	switch {
	case fl && hj && rf:
		return &fullWriter{rw}
	case fl:
		return &flushWriter{rw}
	}
	return &rw
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *recordingWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *recordingWriter) Status() int         { return w.status }
func (w *recordingWriter) BytesWritten() int64 { return w.bytes }

func (w *recordingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type fullWriter struct {
	recordingWriter
}

func (w *fullWriter) Flush() {
	w.ResponseWriter.(http.Flusher).Flush()
}

func (w *fullWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.ResponseWriter.(http.Hijacker).Hijack()
}

func (w *fullWriter) ReadFrom(r io.Reader) (int64, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.(io.ReaderFrom).ReadFrom(r)
	w.bytes += n
	return n, err
}

var _ http.Flusher = &fullWriter{}
var _ http.Hijacker = &fullWriter{}
var _ io.ReaderFrom = &fullWriter{}

type flushWriter struct {
	recordingWriter
}

func (w *flushWriter) Flush() {
	w.ResponseWriter.(http.Flusher).Flush()
}

var _ http.Flusher = &flushWriter{}
