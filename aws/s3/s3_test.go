package s3

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{uri: "s3://logs/tracking/2023", bucket: "logs", key: "tracking/2023"},
		{uri: "s3n://logs/tracking", bucket: "logs", key: "tracking"},
		{uri: "s3a://logs/tracking", bucket: "logs", key: "tracking"},
		{uri: "s3://logs", bucket: "logs", key: ""},
		{uri: "s3://logs/", bucket: "logs", key: ""},
		{uri: "s3://logs/a/b/c.gz", bucket: "logs", key: "a/b/c.gz"},
		{uri: "s3://", wantErr: true},
		{uri: "hdfs://namenode:9000/logs", wantErr: true},
		{uri: "/local/path", wantErr: true},
		{uri: "s3zz://logs/tracking", wantErr: true},
	}
	for _, tst := range tests {
		t.Run(tst.uri, func(t *testing.T) {
			bucket, key, err := ParseURI(tst.uri)
			if tst.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s / %s", bucket, key)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsing: %v", err)
			}
			if bucket != tst.bucket || key != tst.key {
				t.Fatalf("got %s / %s, want %s / %s", bucket, key, tst.bucket, tst.key)
			}
		})
	}
}

func TestStoreObjectKey(t *testing.T) {
	tests := []struct {
		root string
		path string
		want string
	}{
		{root: "warehouse/events", path: "dt=2023-01-01/batch_1.gz", want: "warehouse/events/dt=2023-01-01/batch_1.gz"},
		{root: "warehouse/", path: "_metadata.tsv", want: "warehouse/_metadata.tsv"},
		{root: "", path: "_metadata.tsv", want: "_metadata.tsv"},
	}
	for _, tst := range tests {
		s := &Store{root: tst.root}
		if got := s.objectKey(tst.path); got != tst.want {
			t.Fatalf("objectKey(%q) with root %q = %q, want %q", tst.path, tst.root, got, tst.want)
		}
	}
}
