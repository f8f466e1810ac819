package mcu

import (
	"testing"

	"sixstep/protocol"
)

func TestParseFormat(t *testing.T) {
	mf, err := parseFormat(3, "identify_response offset=%u data=%*s")
	if err != nil {
		t.Fatal(err)
	}
	if mf.ID != 3 || mf.Name != "identify_response" || len(mf.Params) != 2 {
		t.Fatalf("format = %+v", mf)
	}
	if mf.Params[0].Bytes || !mf.Params[1].Bytes {
		t.Errorf("param kinds = %+v", mf.Params)
	}

	if _, err := parseFormat(1, "bad offset"); err == nil {
		t.Error("parameter without type accepted")
	}
}

func TestDecodeParams(t *testing.T) {
	mf, _ := parseFormat(9, "commutation_state running=%c active=%c index=%u step=%c u=%u v=%u w=%u")

	out := protocol.NewScratchOutput()
	for _, v := range []uint32{1, 1, 4000000000, 5, 4249, 0, 1} {
		protocol.EncodeVLQUint(out, v)
	}
	p, err := mf.decode(out.Result())
	if err != nil {
		t.Fatal(err)
	}
	if p.Values["index"] != 4000000000 || p.Values["u"] != 4249 || p.Values["w"] != 1 {
		t.Errorf("values = %v", p.Values)
	}

	if _, err := mf.decode(out.Result()[:3]); err == nil {
		t.Error("truncated arguments accepted")
	}
}
