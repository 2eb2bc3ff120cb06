// Package bdispatch dispatches HTTP requests to error-returning handlers with buffered responses and
// decodes request bodies incrementally, as the transport delivers them.
//
// # Overview
//
// A [Dispatcher] is built once from a route table and is read-only afterwards. For every request it
// normalizes the path, resolves it with a [route.Dual] matcher (exact routes first, wildcard patterns
// in registration order second), and calls the matched [Handler] with a buffered [ResponseWriter].
//
//	b := route.NewBuilder[bdispatch.Handler]()
//	b.Path("items").Wild().Method(http.MethodGet).Named("get-item").Handle(getItem)
//	b.Path("upload").Method(http.MethodPost).Handle(upload)
//
//	routes, err := b.Routes()
//	if err != nil {
//	    return err // duplicate or invalid routes
//	}
//
//	d, err := bdispatch.New(routes, bdispatch.WithTempDir(dir))
//
// # Handler Signature
//
// Handlers receive the context, a buffered writer and the dispatched [Request], and return an error:
//
//	func getItem(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
//	    item, err := db.GetItem(ctx, r.Capture(0))
//	    if err != nil {
//	        return bdispatch.NewError(bdispatch.CodeNotFound, err)
//	    }
//	    return json.NewEncoder(w).Encode(item)
//	}
//
// Values of "*" and "**" pattern segments are available in [Request.Captures], the query string is
// decoded on first use by [Request.Query].
//
// # Request Bodies
//
// The body is pulled from the transport only when a handler calls [Request.Body]. How it is decoded
// depends on the media type of the Content-Type header:
//
//   - multipart/form-data is decoded while it streams in. Simple fields are kept in memory, file
//     parts are written to temporary files that are removed when the request has been served.
//   - application/x-www-form-urlencoded is indexed by a [query.Decoder].
//   - anything else is kept as raw bytes, with [Body.JSON] and [Body.DecodeJSON] for JSON payloads.
//
// A missing Content-Type is treated as application/octet-stream and body chunks are never read past
// the declared Content-Length. Malformed bodies are reported as [CodeBadRequest], bodies over the
// configured limits as [CodeRequestEntityTooLarge].
//
// # Transports
//
// The dispatcher only needs a [Source] for each request: the method, the raw request target, header
// values, the declared length and the body as a sequence of chunks. [Dispatcher.ServeHTTP] adapts
// net/http, the fhttp package adapts fasthttp.
//
// # Buffered Response Writer
//
// All writes are held in memory until the handler returns. When it returns an error the buffer is
// reset and an error response is rendered instead:
//
//   - [*Error] (created with [NewError] or [Errorf]): uses the error's code and message
//   - Other errors: logged through the [Logger] and rendered as 500 Internal Server Error
//
// A handler that streams can flush explicitly with [http.ResponseController]; after that the
// response can no longer be reset.
//
// # Middleware
//
// [Middleware] wraps every route and the not-found handler. The first middleware given is the
// outermost. Middleware sees the original request path, also for handlers added with [Mount].
package bdispatch
