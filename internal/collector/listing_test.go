package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/korean"
)

// Shape of the corpList download: a bare table, short codes lose their
// leading zeros and the last row repeats a code.
const listingHTML = `<meta http-equiv="Content-Type" content="text/html; charset=EUC-KR">
<table border="1">
<tr><th>회사명</th><th>시장구분</th><th>종목코드</th><th>업종</th></tr>
<tr><td>삼성전자</td><td>유가</td><td style="mso-number-format:'@';">005930</td><td>통신 및 방송 장비 제조업</td></tr>
<tr><td>NAVER</td><td>유가</td><td>35420</td><td>서비스업</td></tr>
<tr><td>SK하이닉스</td><td>유가</td><td>660</td><td>반도체 제조업</td></tr>
<tr><td>삼성전자 중복</td><td>유가</td><td>5930</td><td></td></tr>
<tr><td></td><td></td><td></td><td></td></tr>
</table>`

func TestDecodeListing(t *testing.T) {
	euckr, err := korean.EUCKR.NewEncoder().String(listingHTML)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	tests := []struct {
		name string
		body string
	}{
		{"utf-8", listingHTML},
		{"euc-kr", euckr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeListing([]byte(tt.body))
			if err != nil {
				t.Fatalf("decodeListing: %v", err)
			}
			want := []struct{ code, name string }{
				{"000660", "SK하이닉스"},
				{"005930", "삼성전자"},
				{"035420", "NAVER"},
			}
			if len(got) != len(want) {
				t.Fatalf("got %d companies, want %d: %+v", len(got), len(want), got)
			}
			for i, w := range want {
				if got[i].Code != w.code || got[i].Name != w.name {
					t.Errorf("company %d = %s %s, want %s %s", i, got[i].Code, got[i].Name, w.code, w.name)
				}
			}
		})
	}
}

func TestDecodeListing_NoHeader(t *testing.T) {
	if _, err := decodeListing([]byte("<html><body>maintenance</body></html>")); err == nil {
		t.Error("expected error for a page without the listing table")
	}
}

func TestPadCode(t *testing.T) {
	tests := map[string]string{"5930": "005930", " 660 ": "000660", "005930": "005930", "0088M0": "0088M0", "A1": "A1", "": ""}
	for in, want := range tests {
		if got := padCode(in); got != want {
			t.Errorf("padCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKRXListingFetcher_Retry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	f := NewKRXListingFetcher(ListingOptions{URL: srv.URL, Timeout: 5 * time.Second})
	got, err := f.FetchCompanies(context.Background())
	if err != nil {
		t.Fatalf("FetchCompanies: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d companies, want 3", len(got))
	}
	if calls.Load() != 2 {
		t.Errorf("server called %d times, want 2", calls.Load())
	}
}
