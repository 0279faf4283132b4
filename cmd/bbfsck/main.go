// Package main provides bbfsck, a command-line tool that mounts a
// file-backed BBFS image and runs the offline integrity checker against
// it, optionally listing the directory table and repairing what it
// finds.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/iquefs/bbfs"
	"github.com/iquefs/bbfs/internal/nandfile"
)

func main() {
	fix := pflag.BoolP("fix", "f", false, "repair problems found, instead of only reporting them")
	list := pflag.BoolP("list", "l", false, "list the directory table after checking")
	blocks := int(0)
	pflag.IntVarP(&blocks, "blocks", "b", 0, "device size in blocks, for an image that does not exist yet")
	pflag.Parse()

	args := pflag.Args()
	if len(args) < 1 {
		fmt.Println("Usage: bbfsck [flags] <image-file>")
		pflag.PrintDefaults()
		os.Exit(2)
	}
	path := args[0]

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	if blocks == 0 {
		info, err := os.Stat(path)
		if err != nil {
			log.Error("bbfsck: stat image", "err", err)
			os.Exit(1)
		}
		blocks = int(info.Size() / bbfs.BlockSize)
	}

	dev, err := nandfile.Open(afero.NewOsFs(), path, blocks)
	if err != nil {
		log.Error("bbfsck: open image", "err", err)
		os.Exit(1)
	}

	fs, err := bbfs.Mount(ctx, dev, bbfs.WithLogger(log))
	if err != nil {
		log.Error("bbfsck: mount", "err", err)
		os.Exit(1)
	}

	count, err := fs.Fsck(*fix)
	if err != nil {
		log.Error("bbfsck: fsck", "err", err)
		os.Exit(1)
	}
	fmt.Printf("bbfsck: %d problem(s) found\n", count)

	if *list {
		dir, err := fs.FindFirst("/")
		if err != nil {
			log.Error("bbfsck: findfirst", "err", err)
			os.Exit(1)
		}
		for {
			e, ok := dir.FindNext()
			if !ok {
				break
			}
			fmt.Printf("%-12s %8d bytes\n", e.Name, e.Size)
		}
	}

	if count > 0 && !*fix {
		os.Exit(1)
	}
}
