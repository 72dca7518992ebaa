package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gosfs/sfs"
	"github.com/gosfs/sfs/snapshot"
)

const usage = `sfsutil - Simple File System CLI tool

Usage:
  sfsutil mkfs <image>                         Format a fresh volume image
  sfsutil ls <image>                            List files in a volume
  sfsutil cat <image> <file>                    Display contents of a file
  sfsutil put <image> <file> <local-src>        Copy a local file in as <file>
  sfsutil get <image> <file> <local-dst>        Copy <file> out to a local path
  sfsutil rm <image> <file>                     Remove a file
  sfsutil info <image>                          Display volume usage information
  sfsutil export <image> <archive> [gzip|xz|zst]  Write a compressed snapshot of the image
  sfsutil import <archive> <image> [gzip|xz|zst]  Restore an image from a compressed snapshot
  sfsutil help                                  Show this help message

Examples:
  sfsutil mkfs disk.sfs                         Create a fresh 256 KiB volume
  sfsutil put disk.sfs notes.txt ./notes.txt    Copy notes.txt into the volume
  sfsutil cat disk.sfs notes.txt                Print notes.txt's contents
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "mkfs":
		if len(os.Args) < 3 {
			err = fmt.Errorf("missing image path")
			break
		}
		err = mkfs(os.Args[2])

	case "ls":
		if len(os.Args) < 3 {
			err = fmt.Errorf("missing image path")
			break
		}
		err = listFiles(os.Args[2])

	case "cat":
		if len(os.Args) < 4 {
			err = fmt.Errorf("missing image path or file name")
			break
		}
		err = catFile(os.Args[2], os.Args[3])

	case "put":
		if len(os.Args) < 5 {
			err = fmt.Errorf("missing image path, file name, or local source")
			break
		}
		err = putFile(os.Args[2], os.Args[3], os.Args[4])

	case "get":
		if len(os.Args) < 5 {
			err = fmt.Errorf("missing image path, file name, or local destination")
			break
		}
		err = getFile(os.Args[2], os.Args[3], os.Args[4])

	case "rm":
		if len(os.Args) < 4 {
			err = fmt.Errorf("missing image path or file name")
			break
		}
		err = removeFile(os.Args[2], os.Args[3])

	case "info":
		if len(os.Args) < 3 {
			err = fmt.Errorf("missing image path")
			break
		}
		err = showInfo(os.Args[2])

	case "export":
		if len(os.Args) < 4 {
			err = fmt.Errorf("missing image path or archive path")
			break
		}
		codec := "gzip"
		if len(os.Args) > 4 {
			codec = os.Args[4]
		}
		err = exportSnapshot(os.Args[2], os.Args[3], codec)

	case "import":
		if len(os.Args) < 4 {
			err = fmt.Errorf("missing archive path or image path")
			break
		}
		codec := "gzip"
		if len(os.Args) > 4 {
			codec = os.Args[4]
		}
		err = importSnapshot(os.Args[2], os.Args[3], codec)

	case "help":
		fmt.Println(usage)

	default:
		fmt.Printf("Error: Unknown command '%s'\n", cmd)
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func mkfs(path string) error {
	v, err := sfs.Format(path)
	if err != nil {
		return fmt.Errorf("format %s: %w", path, err)
	}
	return v.Close()
}

func listFiles(path string) error {
	v, err := sfs.Mount(path)
	if err != nil {
		return fmt.Errorf("mount %s: %w", path, err)
	}
	defer v.Close()

	for _, name := range v.ListNames() {
		size, err := v.FileSize(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to stat '%s': %s\n", name, err)
			continue
		}
		fmt.Printf("%8d %s\n", size, name)
	}
	return nil
}

func catFile(path, name string) error {
	v, err := sfs.Mount(path)
	if err != nil {
		return fmt.Errorf("mount %s: %w", path, err)
	}
	defer v.Close()

	size, err := v.FileSize(name)
	if err != nil {
		return fmt.Errorf("stat '%s': %w", name, err)
	}

	fd, err := v.OpenFile(name)
	if err != nil {
		return fmt.Errorf("open '%s': %w", name, err)
	}
	defer v.CloseFile(fd)

	buf := make([]byte, sfs.BlockBytes)
	remaining := size
	for remaining > 0 {
		chunk := len(buf)
		if remaining < chunk {
			chunk = remaining
		}
		n, err := v.Read(fd, buf[:chunk])
		if n > 0 {
			if _, werr := os.Stdout.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write stdout: %w", werr)
			}
		}
		if err != nil {
			return fmt.Errorf("read '%s': %w", name, err)
		}
		if n == 0 {
			return nil
		}
		remaining -= n
	}
	return nil
}

func putFile(path, name, localSrc string) error {
	v, err := sfs.Mount(path)
	if err != nil {
		return fmt.Errorf("mount %s: %w", path, err)
	}
	defer v.Close()

	src, err := os.Open(localSrc)
	if err != nil {
		return fmt.Errorf("open local file '%s': %w", localSrc, err)
	}
	defer src.Close()

	if _, err := v.FileSize(name); err == nil {
		if err := v.Remove(name); err != nil {
			return fmt.Errorf("remove existing '%s': %w", name, err)
		}
	}

	fd, err := v.OpenFile(name)
	if err != nil {
		return fmt.Errorf("open '%s': %w", name, err)
	}
	defer v.CloseFile(fd)

	buf := make([]byte, sfs.BlockBytes)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := v.Write(fd, buf[:n]); werr != nil {
				return fmt.Errorf("write '%s': %w", name, werr)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read local file '%s': %w", localSrc, rerr)
		}
	}
}

func getFile(path, name, localDst string) error {
	v, err := sfs.Mount(path)
	if err != nil {
		return fmt.Errorf("mount %s: %w", path, err)
	}
	defer v.Close()

	size, err := v.FileSize(name)
	if err != nil {
		return fmt.Errorf("stat '%s': %w", name, err)
	}

	fd, err := v.OpenFile(name)
	if err != nil {
		return fmt.Errorf("open '%s': %w", name, err)
	}
	defer v.CloseFile(fd)

	dst, err := os.Create(localDst)
	if err != nil {
		return fmt.Errorf("create local file '%s': %w", localDst, err)
	}
	defer dst.Close()

	buf := make([]byte, sfs.BlockBytes)
	remaining := size
	for remaining > 0 {
		chunk := len(buf)
		if remaining < chunk {
			chunk = remaining
		}
		n, err := v.Read(fd, buf[:chunk])
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write local file '%s': %w", localDst, werr)
			}
		}
		if err != nil {
			return fmt.Errorf("read '%s': %w", name, err)
		}
		if n == 0 {
			return nil
		}
		remaining -= n
	}
	return nil
}

func removeFile(path, name string) error {
	v, err := sfs.Mount(path)
	if err != nil {
		return fmt.Errorf("mount %s: %w", path, err)
	}
	defer v.Close()

	if err := v.Remove(name); err != nil {
		return fmt.Errorf("remove '%s': %w", name, err)
	}
	return nil
}

func showInfo(path string) error {
	v, err := sfs.Mount(path)
	if err != nil {
		return fmt.Errorf("mount %s: %w", path, err)
	}
	defer v.Close()

	used, free := v.Usage()
	names := v.ListNames()

	fmt.Println("SFS Volume Information")
	fmt.Println("=======================")
	fmt.Printf("Block size:       %d bytes\n", sfs.BlockBytes)
	fmt.Printf("Block count:      %d\n", sfs.BlockCount)
	fmt.Printf("Blocks used:      %d\n", used)
	fmt.Printf("Blocks free:      %d\n", free)
	fmt.Printf("File count:       %d\n", len(names))
	return nil
}

func codecFor(name string) (snapshot.Codec, error) {
	switch name {
	case "gzip":
		return snapshot.GzipCodec{}, nil
	case "xz":
		return snapshot.XZCodec{}, nil
	case "zst":
		return snapshot.ZstdCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec '%s' (want gzip, xz, or zst)", name)
	}
}

func exportSnapshot(imagePath, archivePath, codecName string) error {
	codec, err := codecFor(codecName)
	if err != nil {
		return err
	}
	return snapshot.Export(imagePath, archivePath, codec)
}

func importSnapshot(archivePath, imagePath, codecName string) error {
	codec, err := codecFor(codecName)
	if err != nil {
		return err
	}
	return snapshot.Import(archivePath, imagePath, codec)
}
