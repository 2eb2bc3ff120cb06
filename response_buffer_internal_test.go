package bdispatch

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func BenchmarkResponseBuffer(b *testing.B) {
	for _, size := range []int{1 << 10, 64 << 10} {
		dat := make([]byte, size)

		b.Run("buffered-"+strconv.Itoa(size), func(b *testing.B) {
			b.ReportAllocs()

			for range b.N {
				rbuf := newBufferResponse(httptest.NewRecorder(), -1)
				if _, err := rbuf.Write(dat); err != nil {
					b.Fatal(err)
				}

				if err := rbuf.FlushBuffer(); err != nil {
					b.Fatal(err)
				}

				rbuf.Free()
			}
		})
	}
}

// TestBehavesLikeStdWriter serves each handler once directly and once through a buffer and
// expects the same status, headers and body.
func TestBehavesLikeStdWriter(t *testing.T) {
	for _, tt := range []struct {
		name    string
		handler func(w http.ResponseWriter)
	}{
		{"implicit 200", func(http.ResponseWriter) {}},
		{"explicit 201", func(w http.ResponseWriter) { w.WriteHeader(http.StatusCreated) }},
		{"implicit header writing", func(w http.ResponseWriter) {
			w.Header().Set("Rab", "dar")
			fmt.Fprintf(w, "foo")
		}},
		{"header set after write is dropped", func(w http.ResponseWriter) {
			w.Header().Set("Rab", "dar")
			fmt.Fprintf(w, "bar")
			w.Header().Set("Dar", "tab")
		}},
		{"header set after WriteHeader is dropped", func(w http.ResponseWriter) {
			w.Header().Set("Rab", "dar")
			w.WriteHeader(http.StatusAccepted)
			w.Header().Set("Dar", "tab")
		}},
		{"first status wins", func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, "bar")
			w.WriteHeader(http.StatusAccepted)
		}},
		{"explicit flush", func(w http.ResponseWriter) {
			w.Header().Set("Rab", "dar")
			fmt.Fprintf(w, "aaa")
			assert.NoError(t, http.NewResponseController(w).Flush())
			w.Header().Set("Dar", "tab")
			fmt.Fprintf(w, "bbb")
		}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			direct := httptest.NewRecorder()
			tt.handler(direct)

			buffered := httptest.NewRecorder()
			wr := newBufferResponse(buffered, 10)
			tt.handler(wr)
			require.NoError(t, wr.FlushBuffer())
			wr.Free()

			assert.Equal(t, direct.Code, buffered.Code)
			assert.Equal(t, direct.Body.String(), buffered.Body.String())
			assert.Equal(t, direct.Result().Header.Get("Rab"), buffered.Result().Header.Get("Rab"))
			assert.Equal(t, direct.Result().Header.Get("Dar"), buffered.Result().Header.Get("Dar"))
		})
	}
}

func TestBufferedWrites(t *testing.T) {
	t.Run("limiting", func(t *testing.T) {
		t.Run("should limit writes exactly", func(t *testing.T) {
			rec := httptest.NewRecorder()
			wrt := newBufferResponse(rec, 1)
			n, err := wrt.Write([]byte{0x01})
			require.NoError(t, err)
			require.Equal(t, 1, n)

			n, err = wrt.Write([]byte{0x02})
			require.Equal(t, 0, n)
			require.ErrorIs(t, err, ErrBufferFull)
			assert.Equal(t, 0, rec.Body.Len(), "nothing should be flushed yet")
		})

		t.Run("should not limit writes when passed -1", func(t *testing.T) {
			rec := httptest.NewRecorder()
			wrt := newBufferResponse(rec, -1)
			n, err := wrt.Write(make([]byte, 1<<20))
			require.NoError(t, err)
			require.Equal(t, 1<<20, n)
			assert.Equal(t, 0, rec.Body.Len())
		})

		t.Run("should count the limit per flush", func(t *testing.T) {
			rec := httptest.NewRecorder()
			fwr := newBufferResponse(rec, 2)

			for range 3 {
				n, err := fwr.Write([]byte{0x01, 0x02})
				require.NoError(t, err)
				require.Equal(t, 2, n)
				require.NoError(t, fwr.FlushError())
			}

			assert.Equal(t, []byte{0x01, 0x02, 0x01, 0x02, 0x01, 0x02}, rec.Body.Bytes())
			assert.True(t, rec.Flushed)
		})
	})

	t.Run("should unwrap correctly", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.Equal(t, rec, newBufferResponse(rec, 0).Unwrap())
	})

	t.Run("should pass on flush errors", func(t *testing.T) {
		fwr := newBufferResponse(failingResponseWriter{httptest.NewRecorder()}, -1)
		_, _ = fmt.Fprint(fwr, "foo")
		err := fwr.FlushError()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "write fail")
	})

	t.Run("should ignore writers that cannot flush", func(t *testing.T) {
		rec := httptest.NewRecorder()
		fwr := newBufferResponse(struct{ http.ResponseWriter }{rec}, -1)
		_, _ = fmt.Fprint(fwr, "foo")
		require.NoError(t, fwr.FlushError())
		assert.Equal(t, "foo", rec.Body.String())
	})

	t.Run("reset behaviour", func(t *testing.T) {
		t.Run("should discard body, headers and status", func(t *testing.T) {
			rec := httptest.NewRecorder()
			resp := newBufferResponse(rec, -1)
			resp.Header().Set("X-Before", "before")
			resp.WriteHeader(http.StatusCreated)
			fmt.Fprintf(resp, "foo")

			resp.Reset()
			assert.Equal(t, http.StatusOK, resp.Status())

			resp.Header().Set("X-After", "after")
			fmt.Fprintf(resp, "bar")
			require.NoError(t, resp.FlushBuffer())

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "bar", rec.Body.String())
			assert.Equal(t, "after", rec.Header().Get("X-After"))
			assert.Empty(t, rec.Header().Values("X-Before"))
		})

		t.Run("should allow re-writing status code", func(t *testing.T) {
			rec := httptest.NewRecorder()
			resp := newBufferResponse(rec, -1)
			resp.WriteHeader(http.StatusCreated)
			resp.Reset()
			resp.WriteHeader(http.StatusAccepted)

			require.NoError(t, resp.FlushBuffer())
			assert.Equal(t, http.StatusAccepted, rec.Code)
		})

		t.Run("should reset limit after reset", func(t *testing.T) {
			rec := httptest.NewRecorder()
			resp := newBufferResponse(rec, 2)

			for range 3 {
				resp.Reset()
				_, err := resp.Write([]byte("fo"))
				require.NoError(t, err)
			}

			require.NoError(t, resp.FlushBuffer())
			assert.Equal(t, "fo", rec.Body.String())
		})

		t.Run("should not allow reset after explicit flush", func(t *testing.T) {
			resp := newBufferResponse(httptest.NewRecorder(), -1)
			require.NoError(t, http.NewResponseController(resp).Flush())
			assert.True(t, resp.Flushed())

			defer func() {
				r := recover()
				require.NotNil(t, r, "expected a panic on Reset")
				require.Contains(t, fmt.Sprintf("%v", r), "already flushed")
			}()
			resp.Reset()
		})

		t.Run("implicit flush still allows reset", func(t *testing.T) {
			resp := newBufferResponse(httptest.NewRecorder(), -1)
			require.NoError(t, resp.FlushBuffer())
			assert.NotPanics(t, resp.Reset)
		})
	})
}

type failingResponseWriter struct {
	http.ResponseWriter
}

func (f failingResponseWriter) Write([]byte) (int, error) {
	return 0, errors.New("write fail")
}
