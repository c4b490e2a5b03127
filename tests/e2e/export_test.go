// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.
package e2e

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	ginkgo "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/iron-fish/snapshotter/internal/testutils"
	"github.com/iron-fish/snapshotter/pkg/archive"
	"github.com/iron-fish/snapshotter/pkg/cloud/storage"
	"github.com/iron-fish/snapshotter/pkg/constants"
	"github.com/iron-fish/snapshotter/pkg/snapshot"
)

type recordedPut struct {
	Key         string
	ContentType string
	ACL         string
	Body        []byte
}

type putRecorder struct {
	mu   sync.Mutex
	puts []recordedPut
}

func (r *putRecorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		r.mu.Lock()
		r.puts = append(r.puts, recordedPut{
			Key:         strings.TrimPrefix(req.URL.Path, "/"),
			ContentType: req.Header.Get("Content-Type"),
			ACL:         req.Header.Get("x-amz-acl"),
			Body:        body,
		})
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
}

func (r *putRecorder) recorded() []recordedPut {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedPut(nil), r.puts...)
}

// archiveEntries unpacks a tar.gz held in memory into name -> contents.
func archiveEntries(data []byte) map[string]string {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	gomega.Expect(err).Should(gomega.BeNil())
	defer gz.Close()

	entries := map[string]string{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		gomega.Expect(err).Should(gomega.BeNil())
		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		contents, err := io.ReadAll(tr)
		gomega.Expect(err).Should(gomega.BeNil())
		entries[hdr.Name] = string(contents)
	}
	return entries
}

var _ = ginkgo.Describe("[snapshot export]", func() {
	var (
		node     *testutils.FakeNode
		server   *httptest.Server
		recorder *putRecorder
	)

	ginkgo.BeforeEach(func() {
		var err error
		node, err = testutils.StartFakeNode(10, 12, []testutils.FakeRecord{
			{Sequence: 10, Payload: []byte("block ten")},
			{Sequence: 11, Payload: []byte("block eleven")},
			{Sequence: 12, Payload: []byte("block twelve")},
		})
		gomega.Expect(err).Should(gomega.BeNil())

		recorder = &putRecorder{}
		server = httptest.NewServer(recorder.handler())
	})

	ginkgo.AfterEach(func() {
		server.Close()
		_ = node.Close()
	})

	newExporter := func(cfg snapshot.ExportConfig) *snapshot.Exporter {
		e, err := snapshot.NewExporter(cfg, zap.NewNop().Sugar(), nil)
		gomega.Expect(err).Should(gomega.BeNil())
		e.SetBuilder(&archive.GzipBuilder{})
		return e
	}

	ginkgo.It("exports and publishes a snapshot end to end", func() {
		workingDir := ginkgo.GinkgoT().TempDir()
		e := newExporter(snapshot.ExportConfig{
			NodeAddress:       node.Addr(),
			WorkingDir:        workingDir,
			Bucket:            "snapshots.example.com",
			MaxBlocksPerChunk: 100,
		})
		uploader := storage.NewPutUploader("snapshots.example.com")
		uploader.BaseURL = server.URL
		e.SetUploader(uploader)

		result, err := e.Export(context.Background())
		gomega.Expect(err).Should(gomega.BeNil())
		gomega.Expect(result.Published).Should(gomega.BeTrue())
		gomega.Expect(result.Bounds.Start).Should(gomega.Equal(uint64(10)))
		gomega.Expect(result.Bounds.Stop).Should(gomega.Equal(uint64(12)))

		// the archive and then the manifest, in that order
		puts := recorder.recorded()
		gomega.Expect(puts).Should(gomega.HaveLen(2))
		gomega.Expect(puts[0].Key).Should(gomega.HavePrefix(constants.ArchivePrefix))
		gomega.Expect(puts[0].Key).Should(gomega.HaveSuffix(constants.ArchiveSuffix))
		gomega.Expect(puts[0].ContentType).Should(gomega.Equal(constants.ArchiveContentType))
		gomega.Expect(puts[0].ACL).Should(gomega.Equal(constants.BucketOwnerFullControlACL))
		gomega.Expect(puts[1].Key).Should(gomega.Equal(constants.ManifestFileName))
		gomega.Expect(puts[1].ContentType).Should(gomega.Equal(constants.ManifestContentType))

		// the uploaded archive holds every streamed block
		entries := archiveEntries(puts[0].Body)
		gomega.Expect(entries).Should(gomega.Equal(map[string]string{
			"blocks/10": "block ten",
			"blocks/11": "block eleven",
			"blocks/12": "block twelve",
		}))

		// the uploaded manifest describes the uploaded archive
		var manifest snapshot.Manifest
		gomega.Expect(json.Unmarshal(puts[1].Body, &manifest)).Should(gomega.BeNil())
		gomega.Expect(manifest.BlockHeight).Should(gomega.Equal(uint64(12)))
		gomega.Expect(manifest.FileName).Should(gomega.Equal(puts[0].Key))
		gomega.Expect(manifest.FileSize).Should(gomega.Equal(int64(len(puts[0].Body))))
		sum := sha256.Sum256(puts[0].Body)
		gomega.Expect(manifest.Checksum).Should(gomega.Equal(hex.EncodeToString(sum[:])))

		// caller-supplied directories are kept after publishing
		gomega.Expect(result.WorkingDir).Should(gomega.Equal(workingDir))
		_, err = os.Stat(result.ArchivePath)
		gomega.Expect(err).Should(gomega.BeNil())
	})

	ginkgo.It("exports locally when no bucket is configured", func() {
		workingDir := ginkgo.GinkgoT().TempDir()
		e := newExporter(snapshot.ExportConfig{
			NodeAddress: node.Addr(),
			WorkingDir:  workingDir,
		})

		result, err := e.Export(context.Background())
		gomega.Expect(err).Should(gomega.BeNil())
		gomega.Expect(result.Published).Should(gomega.BeFalse())
		gomega.Expect(recorder.recorded()).Should(gomega.BeEmpty())

		// no manifest, just the archive and the raw block files
		_, err = os.Stat(filepath.Join(workingDir, constants.ManifestFileName))
		gomega.Expect(os.IsNotExist(err)).Should(gomega.BeTrue())

		data, err := os.ReadFile(result.ArchivePath)
		gomega.Expect(err).Should(gomega.BeNil())
		entries := archiveEntries(data)
		gomega.Expect(entries).Should(gomega.HaveLen(3))
		gomega.Expect(entries["blocks/11"]).Should(gomega.Equal("block eleven"))
	})
})
