// Package manifest fetches a group's remote assembly listing, parses it into
// entries, applies the group's inclusion rule and cuts the result into
// bounded batches.
//
// The parser is column-position based: NCBI's assembly_summary.txt is the
// default layout, and a Layout can describe any other tab-separated listing.
package manifest
