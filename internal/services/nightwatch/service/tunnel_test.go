package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTunnelAdminStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/api/proxy/tcp" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"proxies": [
			{"name": "aabbccddee01", "status": "online", "conf": {"remote_port": 7001}},
			{"name": "aabbccddee02", "status": "offline", "conf": {"remote_port": 7002}},
			{"name": "dashboard", "status": "online", "conf": {"remote_port": 8080}}
		]}`)
	}))
	defer srv.Close()

	got, err := NewTunnelAdmin(srv.URL, "admin", "secret").Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("tunnel map = %v, want two antennas", got)
	}
	if st := got["aabbccddee01"]; !st.Online || st.RemotePort != 7001 {
		t.Fatalf("aabbccddee01 = %+v", st)
	}
	if st := got["aabbccddee02"]; st.Online {
		t.Fatalf("aabbccddee02 reported online")
	}
}

func TestTunnelAdminStatus_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	if _, err := NewTunnelAdmin(srv.URL, "admin", "wrong").Status(context.Background()); err == nil {
		t.Fatal("expected an error for rejected credentials")
	}
}
