package jbig2

import (
	"encoding/binary"
	"testing"
)

func TestDecodeSingleByteComment(t *testing.T) {
	var data []byte
	data = binary.BigEndian.AppendUint32(data, extensionSingleByteCodedComment)
	data = append(data, []byte("producer\x00scanner caf\xe9\x00")...)
	data = append(data, 0x00) // empty key terminates

	comments, warning, err := decodeExtension(data)
	if err != nil {
		t.Fatal(err)
	}
	if warning != "" {
		t.Fatalf("unexpected warning %q", warning)
	}
	if len(comments) != 1 || comments[0].Key != "producer" || comments[0].Value != "scanner café" {
		t.Fatalf("comments = %+v", comments)
	}
}

func TestDecodeMultiByteComment(t *testing.T) {
	appendUCS2 := func(out []byte, s string) []byte {
		for _, r := range s {
			out = binary.BigEndian.AppendUint16(out, uint16(r))
		}
		return binary.BigEndian.AppendUint16(out, 0)
	}
	var data []byte
	data = binary.BigEndian.AppendUint32(data, extensionMultiByteCodedComment)
	data = appendUCS2(data, "title")
	data = appendUCS2(data, "π pages")
	data = binary.BigEndian.AppendUint16(data, 0)

	comments, _, err := decodeExtension(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].Key != "title" || comments[0].Value != "π pages" {
		t.Fatalf("comments = %+v", comments)
	}
}

func TestDecodeMalformedCommentIsNonFatal(t *testing.T) {
	// Comments are never marked necessary, so a broken body degrades to a
	// warning instead of failing the page.
	var trailing []byte
	trailing = binary.BigEndian.AppendUint32(trailing, extensionSingleByteCodedComment)
	trailing = append(trailing, 0x00, 0xff) // terminator plus junk
	comments, warning, err := decodeExtension(trailing)
	if err != nil {
		t.Fatalf("trailing data should not be fatal: %v", err)
	}
	if warning == "" || len(comments) != 0 {
		t.Fatalf("expected warning and no comments, got %q, %+v", warning, comments)
	}

	var truncated []byte
	truncated = binary.BigEndian.AppendUint32(truncated, extensionMultiByteCodedComment)
	truncated = append(truncated, 0x00, 0x41) // unterminated key
	if _, warning, err := decodeExtension(truncated); err != nil || warning == "" {
		t.Fatalf("truncated comment should warn, got %q, %v", warning, err)
	}

	if _, warning, err := decodeExtension([]byte{0x20}); err != nil || warning == "" {
		t.Fatalf("short extension should warn, got %q, %v", warning, err)
	}
}

func TestDecodeUnknownExtension(t *testing.T) {
	necessary := binary.BigEndian.AppendUint32(nil, 0x90000001)
	if _, _, err := decodeExtension(necessary); err == nil {
		t.Fatal("expected error for unknown necessary extension")
	}

	optional := binary.BigEndian.AppendUint32(nil, 0x10000001)
	_, warning, err := decodeExtension(optional)
	if err != nil {
		t.Fatal(err)
	}
	if warning == "" {
		t.Fatal("expected warning for skipped extension")
	}
}
