// Copyright © 2025 Meroxa, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mrt

import (
	"bufio"
	"encoding/binary"
	"io"

	gmrt "github.com/osrg/gobgp/v3/pkg/packet/mrt"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
)

// Reader frames MRT records from a stream. PEER_INDEX_TABLE records are
// consumed by the reader and attached to the RIB records that follow them,
// records of unsupported types are skipped.
type Reader struct {
	r      *bufio.Reader
	hdr    [gmrt.MRT_COMMON_HEADER_LEN]byte
	peers  *PeerIndex
	broken bool

	skipped int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next supported record. It returns io.EOF at the end of the
// stream. If the stream ends in the middle of a record or a record can not be
// framed Next returns an error matching ErrTruncated or ErrMalformed once and
// io.EOF afterwards.
func (r *Reader) Next() (Message, error) {
	if r.broken {
		return Message{}, io.EOF
	}
	for {
		msg, err := r.read()
		if err != nil {
			if err != io.EOF {
				r.broken = true
			}
			return Message{}, err
		}

		if msg.Header.Type == gmrt.TABLE_DUMPv2 && msg.Header.SubType == subtypePeerIndexTable {
			pit := &gmrt.PeerIndexTable{}
			if err := pit.DecodeFromBytes(msg.Body); err != nil {
				r.broken = true
				return Message{}, cerrors.Mark(cerrors.Errorf("peer index table: %w", err), ErrMalformed)
			}
			r.peers = newPeerIndex(pit)
			continue
		}
		if msg.Kind() == 0 {
			r.skipped++
			continue
		}
		if msg.Header.Type == gmrt.TABLE_DUMPv2 {
			msg.Peers = r.peers
		}
		return msg, nil
	}
}

// Reset makes the reader read records from rd. The peer index read so far is
// kept, so a feed delivering one table dump in many chunks can be framed by a
// single reader.
func (r *Reader) Reset(rd io.Reader) {
	r.r.Reset(rd)
	r.broken = false
}

// Skipped returns the number of records of unsupported types read so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

func (r *Reader) read() (Message, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Message{}, cerrors.Errorf("%w: short header", ErrTruncated)
		}
		return Message{}, err
	}
	var h gmrt.MRTHeader
	if err := h.DecodeFromBytes(r.hdr[:]); err != nil {
		return Message{}, cerrors.Mark(err, ErrMalformed)
	}
	if h.Len > maxRecordLen {
		return Message{}, cerrors.Errorf("%w: record length %d exceeds limit", ErrMalformed, h.Len)
	}

	body := make([]byte, h.Len)
	if _, err := io.ReadFull(r.r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Message{}, cerrors.Errorf("%w: expected %d body bytes", ErrTruncated, h.Len)
		}
		return Message{}, err
	}

	msg := Message{Header: h, Body: body}
	if h.Type == gmrt.BGP4MP_ET {
		if len(body) < 4 {
			return Message{}, cerrors.Errorf("%w: extended timestamp record without microseconds", ErrMalformed)
		}
		msg.Microseconds = binary.BigEndian.Uint32(body)
		msg.Body = body[4:]
		msg.Header.Type = gmrt.BGP4MP
		msg.Header.Len = h.Len - 4
	}
	return msg, nil
}

func rawWithMicroseconds(h gmrt.MRTHeader, usec uint32, body []byte) []byte {
	b := make([]byte, gmrt.MRT_COMMON_HEADER_LEN+4, gmrt.MRT_COMMON_HEADER_LEN+4+len(body))
	binary.BigEndian.PutUint32(b[0:], h.Timestamp)
	binary.BigEndian.PutUint16(b[4:], uint16(gmrt.BGP4MP_ET))
	binary.BigEndian.PutUint16(b[6:], h.SubType)
	binary.BigEndian.PutUint32(b[8:], uint32(len(body)+4))
	binary.BigEndian.PutUint32(b[12:], usec)
	return append(b, body...)
}
