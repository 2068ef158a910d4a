package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// mockHeadClient implements the minimal S3 client interface needed for testing.
type mockHeadClient struct {
	headObjectResp *s3.HeadObjectOutput
	headObjectErr  error
}

func (m *mockHeadClient) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return m.headObjectResp, m.headObjectErr
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestShouldArchive(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(*mockHeadClient)
		localSize int64
		want      bool
		wantErr   bool
	}{
		{
			name: "object doesn't exist (NoSuchKey) - should archive",
			setupMock: func(m *mockHeadClient) {
				m.headObjectErr = &types.NoSuchKey{}
			},
			localSize: 1024,
			want:      true,
		},
		{
			name: "object doesn't exist (NotFound) - should archive",
			setupMock: func(m *mockHeadClient) {
				m.headObjectErr = &types.NotFound{}
			},
			localSize: 1024,
			want:      true,
		},
		{
			name: "object exists with same size - should skip",
			setupMock: func(m *mockHeadClient) {
				m.headObjectResp = &s3.HeadObjectOutput{
					ContentLength: int64Ptr(1024),
				}
			},
			localSize: 1024,
			want:      false,
		},
		{
			name: "object exists with different size - should archive",
			setupMock: func(m *mockHeadClient) {
				m.headObjectResp = &s3.HeadObjectOutput{
					ContentLength: int64Ptr(2048),
				}
			},
			localSize: 1024,
			want:      true,
		},
		{
			name: "object exists but no ContentLength - should archive to be safe",
			setupMock: func(m *mockHeadClient) {
				m.headObjectResp = &s3.HeadObjectOutput{}
			},
			localSize: 1024,
			want:      true,
		},
		{
			name: "permission error - should return error",
			setupMock: func(m *mockHeadClient) {
				m.headObjectErr = errors.New("access denied")
			},
			localSize: 1024,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockHeadClient{}
			tt.setupMock(mock)

			got, err := ShouldArchive(context.Background(), mock, "test-bucket", "test-key", tt.localSize)

			if (err != nil) != tt.wantErr {
				t.Errorf("ShouldArchive() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ShouldArchive() = %v, want %v", got, tt.want)
			}
		})
	}
}
