// Package doctype defines the typed records this app works with.
//
// The host framework stores every business entity as a "doctype" instance:
// a record identified by (doctype, name) carrying fields and child tables.
// This package gives the one doctype the app declares, IWO Number, an
// explicit Go shape instead of loosely-typed attribute access, together
// with a typed view of DocShare grant rows.
//
// This package imports nothing internal. All other internal packages may
// import doctype.
//
// Key design constraints:
//   - User identifiers are compared after trimming and NFC normalization
//   - All JSON/YAML tags use snake_case, matching the host field names
//   - Record documents are validated against an embedded CUE definition
//     before they are decoded (see DecodeRecord)
package doctype
