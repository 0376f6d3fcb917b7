/*
Package dom describes document models and their fields.

A model descriptor is the static, typed description of one entity: an ordered
set of field descriptors, each with a logical in-code name, a wire name used
both as storage key and JSON key, a field kind and optional constraints.
Descriptors are constructed once at startup, fixed up with the framework audit
fields and then treated as read-only for the life of the process.
*/
package dom
