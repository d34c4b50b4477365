// Package tool runs the external programs the pipeline delegates to.
//
// Runner is the single process-spawning contract. Retriever, Extractor and
// Indexer are the per-tool variants: each builds its fixed command line, runs
// it under its own timeout and maps a failure onto the matching errs kind.
// Container wraps any Runner so the same commands execute inside a docker,
// podman, singularity or apptainer image.
package tool
