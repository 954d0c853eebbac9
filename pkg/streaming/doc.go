// Package streaming implements the transport-independent half of the decode
// pipeline: parsing a raw byte stream into Server-Sent-Events frames. The
// frame reader tolerates arbitrary fragmentation of the byte stream and
// enforces an optional per-event size limit. Backend-specific JSON decoding
// lives in the decoders subpackage.
package streaming
