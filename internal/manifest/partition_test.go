package manifest

import (
	"fmt"
	"testing"
)

func entriesN(n int) []Entry {
	out := make([]Entry, n)
	for i := range out {
		out[i] = Entry{Accession: fmt.Sprintf("GCF_%06d.1", i)}
	}
	return out
}

func TestPartitionBoundaries(t *testing.T) {
	cases := []struct{ m, b int }{
		{0, 5}, {1, 5}, {5, 5}, {6, 5}, {10, 5}, {11, 5}, {12345, 5000}, {3, 1},
	}
	for _, c := range cases {
		in := entriesN(c.m)
		batches := Partition(in, c.b)
		want := (c.m + c.b - 1) / c.b
		if len(batches) != want {
			t.Fatalf("M=%d B=%d: %d batches, want %d", c.m, c.b, len(batches), want)
		}
		i := 0
		for _, b := range batches {
			if len(b) == 0 || len(b) > c.b {
				t.Fatalf("M=%d B=%d: batch size %d", c.m, c.b, len(b))
			}
			for _, e := range b {
				if e.Accession != in[i].Accession {
					t.Fatalf("M=%d B=%d: position %d got %s want %s", c.m, c.b, i, e.Accession, in[i].Accession)
				}
				i++
			}
		}
		if i != c.m {
			t.Fatalf("M=%d B=%d: covered %d entries", c.m, c.b, i)
		}
	}
}

func TestPartitionDefaultSize(t *testing.T) {
	batches := Partition(entriesN(DefaultBatchSize+1), 0)
	if len(batches) != 2 || len(batches[0]) != DefaultBatchSize || len(batches[1]) != 1 {
		t.Fatalf("unexpected default partition: %d batches", len(batches))
	}
}

func TestPartitionBatchesDoNotAlias(t *testing.T) {
	batches := Partition(entriesN(4), 2)
	batches[0] = append(batches[0], Entry{Accession: "X"})
	if batches[1][0].Accession == "X" {
		t.Fatal("appending to one batch overwrote the next")
	}
}
