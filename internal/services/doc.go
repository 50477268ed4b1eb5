// Package services defines the error taxonomy shared by the pipeline
// stages, plus the stage integrations under its subpackages (fetch, stt,
// tts).
//
// Stage code wraps failures with one of the sentinel markers so the
// workflow can route a job to the fallback tier or a terminal failure
// without inspecting error strings. Operator-facing diagnostics come from
// Details, which strips the marker prefix.
package services
