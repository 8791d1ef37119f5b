package blob

import (
    "context"
    "io"
    "net/http"
    "net/http/httptest"
    "testing"
)

func TestHTTPStoreUpload(t *testing.T) {
    var gotBody []byte
    var gotCT string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodPut {
            t.Errorf("method: %s", r.Method)
        }
        gotCT = r.Header.Get("Content-Type")
        gotBody, _ = io.ReadAll(r.Body)
        w.WriteHeader(http.StatusCreated)
    }))
    defer srv.Close()

    s := NewHTTPStore(srv.URL + "/")
    u, err := s.Upload(context.Background(), "pod/r1/s1.jpg", "image/jpeg", []byte("jpegbytes"))
    if err != nil {
        t.Fatalf("Upload: %v", err)
    }
    if u != srv.URL+"/pod%2Fr1%2Fs1.jpg" {
        t.Fatalf("url: %s", u)
    }
    if string(gotBody) != "jpegbytes" || gotCT != "image/jpeg" {
        t.Fatalf("body=%q ct=%q", gotBody, gotCT)
    }
}

func TestHTTPStoreUploadError(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusForbidden)
    }))
    defer srv.Close()

    s := NewHTTPStore(srv.URL)
    if _, err := s.Upload(context.Background(), "k", "", nil); err == nil {
        t.Fatal("expected status error")
    }
}
