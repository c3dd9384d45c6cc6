package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"ticketsync/internal/config"
	"ticketsync/internal/logging"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	headErr error
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func TestS3PutUsesPrefixedKey(t *testing.T) {
	fake := newFakeS3()
	sink := newS3WithClient(fake, config.Storage{Bucket: "bkt", Region: "eu-west-1", Prefix: "/attachments/"}, logging.NewNop())
	ctx := context.Background()

	if ok, err := sink.Exists(ctx, "7/a.txt"); err != nil || ok {
		t.Fatalf("Exists before put = %v, %v", ok, err)
	}
	n, err := sink.Put(ctx, "7/a.txt", strings.NewReader("data"), "text/plain")
	if err != nil || n != 4 {
		t.Fatalf("Put = %d, %v", n, err)
	}
	if string(fake.objects["attachments/7/a.txt"]) != "data" || fake.types["attachments/7/a.txt"] != "text/plain" {
		t.Fatalf("object not stored under prefixed key: %v", fake.objects)
	}
	if ok, err := sink.Exists(ctx, "7/a.txt"); err != nil || !ok {
		t.Fatalf("Exists after put = %v, %v", ok, err)
	}
	if got, want := sink.Location("7/a.txt"), "https://bkt.s3.eu-west-1.amazonaws.com/attachments/7/a.txt"; got != want {
		t.Fatalf("Location = %q, want %q", got, want)
	}
}

func TestS3LocationHonoursEndpointAndPublicURL(t *testing.T) {
	sink := newS3WithClient(newFakeS3(), config.Storage{Bucket: "b", Endpoint: "http://minio:9000/"}, logging.NewNop())
	if got := sink.Location("1/x"); got != "http://minio:9000/b/1/x" {
		t.Fatalf("endpoint Location = %q", got)
	}
	sink = newS3WithClient(newFakeS3(), config.Storage{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"}, logging.NewNop())
	if got := sink.Location("1/x"); got != "https://cdn.example.com/1/x" {
		t.Fatalf("cdn Location = %q", got)
	}
}

func TestS3ExistsPropagatesOtherErrors(t *testing.T) {
	fake := newFakeS3()
	fake.headErr = errors.New("boom")
	sink := newS3WithClient(fake, config.Storage{Bucket: "b"}, logging.NewNop())
	if _, err := sink.Exists(context.Background(), "1/x"); err == nil {
		t.Fatal("expected error")
	}
}
