package accumulator

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

const (
	g1Size = bls12381.SizeOfG1AffineCompressed
	g2Size = bls12381.SizeOfG2AffineCompressed

	headerSize = 8

	// ExportSize is the length of an encoded PublicExport.
	ExportSize = headerSize + g1Size + g2Size + g2Size + g1Size

	// ProofSize is the length of an encoded membership or non-membership
	// proof.
	ProofSize = 800

	encodingVersion uint16 = 1
)

// Proof layout, after the 8-byte header:
//
//	epoch(8) | witness G1(48) | element(32) | tag(32) | accumulator G1(48) | remainder(32) | zero padding
const (
	offEpoch     = headerSize
	offWitness   = offEpoch + 8
	offElement   = offWitness + g1Size
	offTag       = offElement + fr.Bytes
	offAcc       = offTag + fr.Bytes
	offRemainder = offAcc + g1Size
	offPadding   = offRemainder + fr.Bytes
)

type proofKind uint16

const (
	kindMembership    proofKind = 1
	kindNonMembership proofKind = 2
)

var (
	exportMagic = [4]byte{'A', 'C', 'E', 'X'}
	proofMagic  = [4]byte{'A', 'C', 'P', 'F'}
)

// PublicExport is everything a verifier needs: (G1, G2, G2^s, A). It holds
// no secret material and is immutable once created.
type PublicExport struct {
	G1        bls12381.G1Affine
	G2        bls12381.G2Affine
	PublicKey bls12381.G2Affine
	Value     bls12381.G1Affine
}

// Bytes encodes the export in ExportSize bytes.
func (e *PublicExport) Bytes() []byte {
	buf := make([]byte, ExportSize)
	putHeader(buf, exportMagic, 0)
	off := headerSize
	off += putG1(buf[off:], &e.G1)
	off += putG2(buf[off:], &e.G2)
	off += putG2(buf[off:], &e.PublicKey)
	putG1(buf[off:], &e.Value)
	return buf
}

// Equal reports whether two exports encode the same public state.
func (e *PublicExport) Equal(other *PublicExport) bool {
	return e.G1.Equal(&other.G1) &&
		e.G2.Equal(&other.G2) &&
		e.PublicKey.Equal(&other.PublicKey) &&
		e.Value.Equal(&other.Value)
}

func (e *PublicExport) MarshalBinary() ([]byte, error) {
	return e.Bytes(), nil
}

func (e *PublicExport) UnmarshalBinary(data []byte) error {
	parsed, err := ParsePublicExport(data)
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}

// ParsePublicExport decodes and validates an export. Every point must be on
// the curve, in the prime-order subgroup and not the identity; the
// generators must be the process parameters.
func ParsePublicExport(data []byte) (*PublicExport, error) {
	p, err := Parameters()
	if err != nil {
		return nil, err
	}
	if len(data) != ExportSize {
		return nil, fmt.Errorf("%w: export must be %d bytes, got %d", ErrInvalidEncoding, ExportSize, len(data))
	}
	reserved, err := readHeader(data, exportMagic)
	if err != nil {
		return nil, err
	}
	if reserved != 0 {
		return nil, fmt.Errorf("%w: non-zero reserved field", ErrInvalidEncoding)
	}

	e := new(PublicExport)
	off := headerSize
	if e.G1, err = decodeG1(data[off:off+g1Size], false); err != nil {
		return nil, err
	}
	off += g1Size
	if e.G2, err = decodeG2(data[off : off+g2Size]); err != nil {
		return nil, err
	}
	off += g2Size
	if e.PublicKey, err = decodeG2(data[off : off+g2Size]); err != nil {
		return nil, err
	}
	off += g2Size
	if e.Value, err = decodeG1(data[off:off+g1Size], false); err != nil {
		return nil, err
	}

	if !e.G1.Equal(&p.G1) || !e.G2.Equal(&p.G2) {
		return nil, fmt.Errorf("%w: unexpected generators", ErrInvalidEncoding)
	}
	return e, nil
}

// Bytes encodes the proof in ProofSize bytes.
func (p *MembershipProof) Bytes() []byte {
	buf := make([]byte, ProofSize)
	putHeader(buf, proofMagic, kindMembership)
	binary.BigEndian.PutUint64(buf[offEpoch:], p.Epoch)
	putG1(buf[offWitness:], &p.Witness)
	putScalar(buf[offElement:], &p.Element)
	putScalar(buf[offTag:], &p.Tag)
	putG1(buf[offAcc:], &p.Accumulator)
	return buf
}

func (p *MembershipProof) MarshalBinary() ([]byte, error) {
	return p.Bytes(), nil
}

func (p *MembershipProof) UnmarshalBinary(data []byte) error {
	parsed, err := ParseMembershipProof(data)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}

// ParseMembershipProof decodes and validates a membership proof.
func ParseMembershipProof(data []byte) (*MembershipProof, error) {
	if err := checkProofFrame(data, kindMembership); err != nil {
		return nil, err
	}
	if !isZero(data[offRemainder:offPadding]) {
		return nil, fmt.Errorf("%w: non-zero reserved field", ErrInvalidEncoding)
	}

	var err error
	p := &MembershipProof{Epoch: binary.BigEndian.Uint64(data[offEpoch:])}
	if p.Witness, err = decodeG1(data[offWitness:offElement], false); err != nil {
		return nil, err
	}
	if p.Element, err = decodeScalar(data[offElement:offTag]); err != nil {
		return nil, err
	}
	if p.Tag, err = decodeScalar(data[offTag:offAcc]); err != nil {
		return nil, err
	}
	if p.Accumulator, err = decodeG1(data[offAcc:offRemainder], false); err != nil {
		return nil, err
	}
	return p, nil
}

// Bytes encodes the proof in ProofSize bytes.
func (p *NonMembershipProof) Bytes() []byte {
	buf := make([]byte, ProofSize)
	putHeader(buf, proofMagic, kindNonMembership)
	binary.BigEndian.PutUint64(buf[offEpoch:], p.Epoch)
	putG1(buf[offWitness:], &p.Witness)
	putScalar(buf[offElement:], &p.Element)
	putScalar(buf[offTag:], &p.Tag)
	putG1(buf[offAcc:], &p.Accumulator)
	putScalar(buf[offRemainder:], &p.Remainder)
	return buf
}

func (p *NonMembershipProof) MarshalBinary() ([]byte, error) {
	return p.Bytes(), nil
}

func (p *NonMembershipProof) UnmarshalBinary(data []byte) error {
	parsed, err := ParseNonMembershipProof(data)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}

// ParseNonMembershipProof decodes and validates a non-membership proof. The
// witness D may be the identity: that is the witness of any element against
// the empty accumulator.
func ParseNonMembershipProof(data []byte) (*NonMembershipProof, error) {
	if err := checkProofFrame(data, kindNonMembership); err != nil {
		return nil, err
	}

	var err error
	p := &NonMembershipProof{Epoch: binary.BigEndian.Uint64(data[offEpoch:])}
	if p.Witness, err = decodeG1(data[offWitness:offElement], true); err != nil {
		return nil, err
	}
	if p.Element, err = decodeScalar(data[offElement:offTag]); err != nil {
		return nil, err
	}
	if p.Tag, err = decodeScalar(data[offTag:offAcc]); err != nil {
		return nil, err
	}
	if p.Accumulator, err = decodeG1(data[offAcc:offRemainder], false); err != nil {
		return nil, err
	}
	if p.Remainder, err = decodeScalar(data[offRemainder:offPadding]); err != nil {
		return nil, err
	}
	return p, nil
}

func checkProofFrame(data []byte, want proofKind) error {
	if len(data) != ProofSize {
		return fmt.Errorf("%w: proof must be %d bytes, got %d", ErrInvalidEncoding, ProofSize, len(data))
	}
	kind, err := readHeader(data, proofMagic)
	if err != nil {
		return err
	}
	if kind != want {
		return fmt.Errorf("%w: unexpected proof kind %d", ErrInvalidEncoding, kind)
	}
	if !isZero(data[offPadding:]) {
		return fmt.Errorf("%w: non-zero padding", ErrInvalidEncoding)
	}
	return nil
}

func putHeader(buf []byte, magic [4]byte, kind proofKind) {
	copy(buf[0:4], magic[:])
	binary.BigEndian.PutUint16(buf[4:6], encodingVersion)
	binary.BigEndian.PutUint16(buf[6:8], uint16(kind))
}

func readHeader(data []byte, magic [4]byte) (proofKind, error) {
	if !bytes.Equal(data[0:4], magic[:]) {
		return 0, fmt.Errorf("%w: bad magic", ErrInvalidEncoding)
	}
	if v := binary.BigEndian.Uint16(data[4:6]); v != encodingVersion {
		return 0, fmt.Errorf("%w: unsupported version %d", ErrInvalidEncoding, v)
	}
	return proofKind(binary.BigEndian.Uint16(data[6:8])), nil
}

func putG1(buf []byte, p *bls12381.G1Affine) int {
	b := p.Bytes()
	return copy(buf, b[:])
}

func putG2(buf []byte, p *bls12381.G2Affine) int {
	b := p.Bytes()
	return copy(buf, b[:])
}

func putScalar(buf []byte, x *fr.Element) int {
	b := x.Bytes()
	return copy(buf, b[:])
}

func decodeG1(buf []byte, allowInfinity bool) (bls12381.G1Affine, error) {
	var p bls12381.G1Affine
	n, err := p.SetBytes(buf)
	if err != nil {
		return p, fmt.Errorf("%w: G1 point: %v", ErrInvalidEncoding, err)
	}
	if n != len(buf) {
		return p, fmt.Errorf("%w: G1 point is not compressed", ErrInvalidEncoding)
	}
	if p.IsInfinity() {
		if allowInfinity {
			return p, nil
		}
		return p, fmt.Errorf("%w: G1 point is the identity", ErrInvalidEncoding)
	}
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return p, fmt.Errorf("%w: G1 point not in the prime-order subgroup", ErrInvalidEncoding)
	}
	return p, nil
}

func decodeG2(buf []byte) (bls12381.G2Affine, error) {
	var p bls12381.G2Affine
	n, err := p.SetBytes(buf)
	if err != nil {
		return p, fmt.Errorf("%w: G2 point: %v", ErrInvalidEncoding, err)
	}
	if n != len(buf) {
		return p, fmt.Errorf("%w: G2 point is not compressed", ErrInvalidEncoding)
	}
	if p.IsInfinity() {
		return p, fmt.Errorf("%w: G2 point is the identity", ErrInvalidEncoding)
	}
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return p, fmt.Errorf("%w: G2 point not in the prime-order subgroup", ErrInvalidEncoding)
	}
	return p, nil
}

func decodeScalar(buf []byte) (fr.Element, error) {
	var x fr.Element
	if err := x.SetBytesCanonical(buf); err != nil {
		return x, fmt.Errorf("%w: scalar is not canonical", ErrInvalidEncoding)
	}
	return x, nil
}

func isZero(b []byte) bool {
	var acc byte
	for _, c := range b {
		acc |= c
	}
	return acc == 0
}
