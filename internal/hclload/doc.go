// Package hclload reads the engine's two HCL surfaces: schema manifests
// (one static data description per resource type, consumed by the
// validator) and stack declaration files (resource and data blocks built
// through the engine pipeline in source order).
//
// Stack attribute expressions are evaluated against the references already
// constructed, so aws_db_instance.main.endpoint is a real output token by
// the time the validator sees it, not a string.
package hclload
