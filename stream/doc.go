// Package stream assembles chunked responses into one result.
//
// A streaming request is answered by any number of chunk frames followed by a
// complete frame, all carrying the request's id:
//
//	{"type":"response","requestId":"...","payload":{"success":true,"stream":{"kind":"chunk","content":"Hel"}}}
//	{"type":"response","requestId":"...","payload":{"success":true,"stream":{"kind":"complete","model":"...","tokenCount":42}}}
//
// Aggregator.SendStreamingRequest appends chunk text in arrival order and
// calls the optional ChunkFunc for each chunk before returning. On completion
// Result.Message is the concatenated text; the complete frame's own message
// is used only when no chunk arrived. An error frame aborts the stream and
// partial text is discarded.
//
// Chunks are not reordered: the connection is a single ordered stream.
package stream
