// Package download turns one manifest entry into flat sequence files in a
// group directory.
//
// A task is idempotent: an accession that already has a sequence file in the
// group directory is skipped without touching the network. Otherwise the
// archive is retrieved into a scratch directory inside the group directory,
// unpacked there, and each sequence file is renamed into place. The scratch
// directory (archive and extraction tree) is removed whatever the outcome, so
// the group directory stays flat.
package download
