package bus

import "testing"

func TestSessionCache(t *testing.T) {
	calls := 0
	cache := NewSessionCache(ClientFunc(func(tag string) ([]RemoteContainer, bool) {
		calls++
		if tag != ListContainersRequest {
			return nil, false
		}
		return []RemoteContainer{{FormID: 0x06000001, DisplayName: "Vault"}}, true
	}))

	cs, ok := cache.Request(ListContainersRequest)
	if !ok || len(cs) != 1 || cs[0].DisplayName != "Vault" {
		t.Fatalf("response %v %v", cs, ok)
	}
	cache.Request(ListContainersRequest)
	cache.Request(ListContainersRequest)
	if calls != 1 {
		t.Fatalf("%d client calls", calls)
	}

	// Negative responses are cached for the session too.
	if _, ok := cache.Request("Nope"); ok {
		t.Fatal("unexpected response")
	}
	cache.Request("Nope")
	if calls != 2 {
		t.Fatalf("%d client calls after negative", calls)
	}

	cache.Invalidate()
	cache.Request(ListContainersRequest)
	if calls != 3 {
		t.Fatalf("%d client calls after invalidate", calls)
	}
}
