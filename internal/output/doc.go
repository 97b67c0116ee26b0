// Package output serializes combinations into artifacts and reports.
//
// Two artifact shapes exist:
//   - Link: a base URL with one query parameter per field, in field
//     declaration order (never sorted), so generated URLs are byte-for-byte
//     reproducible.
//   - LetterRequest: a parameter map restricted to mapped fields that are
//     required or carry a value.
//
// The export table (results CSV) and the template table are plain string
// grids written with WriteCSV. Missing values are always "".
package output
