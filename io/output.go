package io

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/phil-mansfield/dynbond/bond"
)

/*
The binary format used for bond files is as follows:
    |-- 1 --||-- 2 --||-- 3 --||-- ... 4 ... --|

    1 - (int32) Flag indicating the endianness of the file. 0 indicates a big
        endian byte ordering and -1 indicates a little endian byte order.
    2 - (int32) Size of a single bond record in bytes. Should be checked for
        consistency.
    3 - (int64) Number of bonds in the file.
    4 - ([][3]uint32) Contiguous block of (tag1, tag2, type) records.
*/

const (
	// DefaultEndiannessFlag is the endianness used when writing bond files.
	// Files of either endianness can be read.
	DefaultEndiannessFlag int32 = -1

	bondRecordSize = 12
	// bondChunk is the number of records read from a binary file at once.
	bondChunk int64 = 1 << 16
	binaryExt = ".bin"
)

// endianness converts an endianness flag to a byte order.
func endianness(flag int32) (binary.ByteOrder, error) {
	switch flag {
	case 0:
		return binary.BigEndian, nil
	case -1:
		return binary.LittleEndian, nil
	}
	return nil, fmt.Errorf("Unrecognized endianness flag, %d.", flag)
}

// WriteBonds writes bonds to file. Files ending in .bin use the binary bond
// format and all other files are written as text tables.
func WriteBonds(file string, bonds []bond.Bond) error {
	f, err := os.Create(file)
	if err != nil { return err }

	if path.Ext(file) == binaryExt {
		err = WriteBinaryBonds(f, bonds, DefaultEndiannessFlag)
	} else {
		err = WriteTextBonds(f, bonds)
	}

	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTextBonds writes bonds as a text table with the columns tag1, tag2 and
// type.
func WriteTextBonds(w io.Writer, bonds []bond.Bond) error {
	buf := bufio.NewWriter(w)
	for _, b := range bonds {
		_, err := fmt.Fprintf(buf, "%d %d %d\n", b.A, b.B, b.Type)
		if err != nil { return err }
	}
	return buf.Flush()
}

// WriteBinaryBonds writes bonds in the binary bond format.
func WriteBinaryBonds(w io.Writer, bonds []bond.Bond, flag int32) error {
	order, err := endianness(flag)
	if err != nil { return err }

	buf := bufio.NewWriter(w)
	if err = binary.Write(buf, order, flag); err != nil { return err }
	if err = binary.Write(buf, order, int32(bondRecordSize)); err != nil {
		return err
	}
	if err = binary.Write(buf, order, int64(len(bonds))); err != nil {
		return err
	}
	if err = binary.Write(buf, order, bonds); err != nil { return err }
	return buf.Flush()
}

// ReadBinaryBonds reads a file written in the binary bond format.
func ReadBinaryBonds(r io.Reader) ([]bond.Bond, error) {
	// The flags are symmetric, so the order doesn't matter for this read.
	var flag int32
	if err := binary.Read(r, binary.LittleEndian, &flag); err != nil {
		return nil, err
	}
	order, err := endianness(flag)
	if err != nil { return nil, err }

	var size int32
	if err = binary.Read(r, order, &size); err != nil { return nil, err }
	if size != bondRecordSize {
		return nil, fmt.Errorf(
			"Expected bond record size of %d, found %d.", bondRecordSize, size,
		)
	}

	var n int64
	if err = binary.Read(r, order, &n); err != nil { return nil, err }
	if n < 0 { return nil, fmt.Errorf("Bond file has %d bonds.", n) }

	// The header's count isn't trusted with a single allocation.
	chunk := make([]bond.Bond, min(n, bondChunk))
	bonds := make([]bond.Bond, 0, len(chunk))
	for int64(len(bonds)) < n {
		buf := chunk[:min(n - int64(len(bonds)), bondChunk)]
		if err = binary.Read(r, order, buf); err != nil {
			return nil, fmt.Errorf(
				"Bond file should have %d bonds, but ended after %d: %w",
				n, len(bonds), err,
			)
		}
		bonds = append(bonds, buf...)
	}
	return bonds, nil
}

// ReadBinaryBondsFile reads a binary bond file.
func ReadBinaryBondsFile(file string) ([]bond.Bond, error) {
	f, err := os.Open(file)
	if err != nil { return nil, err }
	defer f.Close()
	return ReadBinaryBonds(bufio.NewReader(f))
}
