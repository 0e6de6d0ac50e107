package extract

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/abdul-hamid-achik/pagewatch/packages/extract/mocks"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"", KindLabeled, false},
		{"labeled", KindLabeled, false},
		{" TEXT ", KindText, false},
		{"json", KindJSON, false},
		{"xpath", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRule_Apply(t *testing.T) {
	tests := []struct {
		name      string
		rule      Rule
		text      string
		wantValue string
		wantOK    bool
	}{
		{"default kind is labeled", Rule{}, "IP:1.2.3.4", "1.2.3.4", true},
		{"labeled with trim", Rule{Kind: KindLabeled, Trim: true}, "Status: up \n", "up", true},
		{"labeled absent", Rule{Kind: KindLabeled}, "nothing here", "", false},
		{"text is trimmed", Rule{Kind: KindText}, "\n  hello world \n", "hello world", true},
		{"json path", Rule{Kind: KindJSON, Path: "build.version"}, `{"build":{"version":"1.2.0"}}`, "1.2.0", true},
		{"json number", Rule{Kind: KindJSON, Path: "count"}, `{"count": 42}`, "42", true},
		{"json missing path", Rule{Kind: KindJSON, Path: "missing"}, `{"count": 42}`, "", false},
		{"json without path returns body", Rule{Kind: KindJSON}, ` {"a":1} `, `{"a":1}`, true},
		{"invalid json is absent", Rule{Kind: KindJSON, Path: "a"}, "IP:1.2.3.4", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok, err := tt.rule.Apply(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantValue, value)
		})
	}

	t.Run("unknown kind", func(t *testing.T) {
		_, _, err := Rule{Kind: "css"}.Apply("a:b")
		assert.ErrorIs(t, err, ErrUnknownKind)
	})
}

func TestRule_Unmarshal(t *testing.T) {
	t.Run("json shorthand and object", func(t *testing.T) {
		var items map[string]Rule
		err := json.Unmarshal([]byte(`{"ip":"text","version":{"kind":"json","path":"v"}}`), &items)
		require.NoError(t, err)

		assert.Equal(t, Rule{Kind: KindText}, items["ip"])
		assert.Equal(t, Rule{Kind: KindJSON, Path: "v"}, items["version"])
	})
}

func TestExtractor_Extract(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	page := mocks.NewMockPageHandle(ctrl)
	page.EXPECT().Evaluate(ctx, BodyTextFunc).Return("Uptime:99.9%", nil).Times(1)

	value, ok, err := NewExtractor().Extract(ctx, page, Rule{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "99.9%", value)
}

func TestExtractor_ExtractAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	t.Run("evaluates once and skips absent values", func(t *testing.T) {
		page := mocks.NewMockPageHandle(ctrl)
		page.EXPECT().Evaluate(ctx, BodyTextFunc).Return("IP:10.0.0.1", nil).Times(1)

		values, err := NewExtractor().ExtractAll(ctx, page, map[string]Rule{
			"ip":   {Kind: KindLabeled},
			"raw":  {Kind: KindText},
			"json": {Kind: KindJSON, Path: "a"},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"ip": "10.0.0.1", "raw": "IP:10.0.0.1"}, values)
	})

	t.Run("evaluation failure is returned as is", func(t *testing.T) {
		cause := NewEvaluationError(BodyTextFunc, errors.New("target closed"))
		page := mocks.NewMockPageHandle(ctrl)
		page.EXPECT().Evaluate(ctx, BodyTextFunc).Return("", cause).Times(1)

		values, err := NewExtractor().ExtractAll(ctx, page, map[string]Rule{"ip": {}})
		assert.Nil(t, values)
		assert.Same(t, cause, err)
	})

	t.Run("unknown kind names the item", func(t *testing.T) {
		page := mocks.NewMockPageHandle(ctrl)
		page.EXPECT().Evaluate(ctx, BodyTextFunc).Return("a:b", nil).Times(1)

		_, err := NewExtractor().ExtractAll(ctx, page, map[string]Rule{"broken": {Kind: "css"}})
		assert.ErrorIs(t, err, ErrUnknownKind)
		assert.Contains(t, err.Error(), `"broken"`)
	})
}
