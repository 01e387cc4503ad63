//go:build tools
// +build tools

// genfiles creates a tree of random files with a share of exact copies,
// for trying dups out on realistic data.
package main

import (
	"crypto/rand"
	"fmt"
	"io"
	mrand "math/rand"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var sizes = []int64{
	1024,             // 1KiB
	1024 * 1024,      // 1MiB
	10 * 1024 * 1024, // 10MiB
}

type randReader struct {
	remaining int64
}

func (r *randReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := rand.Read(p)
	r.remaining -= int64(n)
	return n, err
}

// createFiles writes n files below dir. Roughly dupRatio of them are
// copies of an earlier file placed in another subdirectory.
func createFiles(fsys afero.Fs, dir string, n int, dupRatio float64) error {
	var written []string
	for i := range n {
		sub := filepath.Join(dir, fmt.Sprintf("set%d", i%5))
		if err := fsys.MkdirAll(sub, 0o755); err != nil {
			return err
		}
		path := filepath.Join(sub, fmt.Sprintf("file_%d.dat", i))

		// #nosec G404 -- test data only.
		if len(written) > 0 && mrand.Float64() < dupRatio {
			src := written[mrand.Intn(len(written))] // #nosec G404
			if err := copyFile(fsys, src, path); err != nil {
				return err
			}
			fmt.Printf("Copied:   %s -> %s\n", src, path)
			continue
		}

		f, err := fsys.Create(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(f, &randReader{remaining: sizes[i%len(sizes)]})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		written = append(written, path)
		fmt.Printf("Creating: %s\n", path)
	}
	return nil
}

func copyFile(fsys afero.Fs, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fsys.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func main() {
	var (
		dir      string
		n        int
		dupRatio float64
	)
	cmd := &cobra.Command{
		Use:   "genfiles",
		Short: "Generate random test files with duplicates",
		RunE: func(*cobra.Command, []string) error {
			if err := createFiles(afero.NewOsFs(), dir, n, dupRatio); err != nil {
				return err
			}
			fmt.Println("Created", n, "test files in", dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "./files", "output directory")
	cmd.Flags().IntVarP(&n, "count", "n", 100, "number of files")
	cmd.Flags().Float64Var(&dupRatio, "dup-ratio", 0.3, "share of files that are copies")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "failed: %v\n", err)
		os.Exit(1)
	}
}
