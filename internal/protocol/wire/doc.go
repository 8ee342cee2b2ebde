// Package wire encodes records into the tagged binary layout:
//
//	Record := Length:u32 Field* End:u8(0)
//	Field  := Tag:u8 Value
//
// All integers are little-endian. Length counts the bytes after itself up to and
// including End. Fields are written in ascending tag order and only when present.
// A sequence value is Count:u32 followed by Count element values. A decoder that
// meets a tag it does not know stops reading fields and jumps to the end stated by
// the length prefix, so older readers accept records from newer writers.
package wire
