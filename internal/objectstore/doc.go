// Package objectstore stores uploaded sources and derived artifacts by bucket
// and key.
//
// Two backends implement Client: FS keeps objects under a root directory and is
// the default for local runs and tests; S3 talks to MinIO or any S3-compatible
// endpoint. URLs are computed without network access so they can be persisted
// alongside entity rows.
package objectstore
