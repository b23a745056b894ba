package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"chattysync/internal/chatty"
)

// count accepts a number encoded either as a json number or a json string.
type count int64

func (c *count) UnmarshalJSON(data []byte) error {
	text := string(bytes.Trim(data, `"`))
	if text == "" || text == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return err
	}
	*c = count(n)
	return nil
}

// decodeObject decodes a json object into raw members, an empty array is
// treated as an empty object.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("[]")) || bytes.Equal(trimmed, []byte("null")) {
		return map[string]json.RawMessage{}, nil
	}
	var out map[string]json.RawMessage
	err := json.Unmarshal(trimmed, &out)
	return out, err
}

// ParseLolCounts decodes the chatty-wide counts document, shaped
// thread id -> post id -> tag -> count.
func ParseLolCounts(data []byte) (chatty.LolCounts, error) {
	threads, err := decodeObject(data)
	if err != nil {
		return chatty.LolCounts{}, fmt.Errorf("lol counts: %w", err)
	}

	out := chatty.LolCounts{Threads: make(map[int64]chatty.ThreadLols, len(threads))}
	for threadKey, threadData := range threads {
		threadId, err := strconv.ParseInt(threadKey, 10, 64)
		if err != nil {
			return chatty.LolCounts{}, fmt.Errorf("lol counts: thread id: %w", err)
		}
		posts, err := decodeObject(threadData)
		if err != nil {
			return chatty.LolCounts{}, fmt.Errorf("lol counts: thread %d: %w", threadId, err)
		}

		threadLols := make(chatty.ThreadLols, len(posts))
		for postKey, postData := range posts {
			postId, err := strconv.ParseInt(postKey, 10, 64)
			if err != nil {
				return chatty.LolCounts{}, fmt.Errorf("lol counts: post id: %w", err)
			}
			var tags map[string]count
			if !bytes.Equal(bytes.TrimSpace(postData), []byte("[]")) {
				err = json.Unmarshal(postData, &tags)
				if err != nil {
					return chatty.LolCounts{}, fmt.Errorf("lol counts: post %d: %w", postId, err)
				}
			}

			postLols := chatty.PostLols{}
			for tag, n := range tags {
				if n > 0 {
					postLols[chatty.Tag(tag)] = int(n)
				}
			}
			if len(postLols) > 0 {
				threadLols[postId] = postLols
			}
		}
		if len(threadLols) > 0 {
			out.Threads[threadId] = threadLols
		}
	}
	return out, nil
}

type threadTagsResponse struct {
	Status count `json:"status"`
	Data   []struct {
		PostId count `json:"thread_id"`
		Tag    count `json:"tag"`
		Total  count `json:"total"`
	} `json:"data"`
}

// ParseThreadTags decodes the per-thread tag totals, keyed by post id.
func ParseThreadTags(data []byte) (chatty.ThreadLols, error) {
	var res threadTagsResponse
	err := json.Unmarshal(data, &res)
	if err != nil {
		return nil, fmt.Errorf("thread tags: %w", err)
	}
	if res.Status != 1 {
		return nil, fmt.Errorf("thread tags: status %d", res.Status)
	}

	out := chatty.ThreadLols{}
	for _, row := range res.Data {
		tag, err := chatty.TagFromNumber(int(row.Tag))
		if err != nil {
			return nil, fmt.Errorf("thread tags: %w", err)
		}
		if row.Total <= 0 {
			continue
		}
		postId := int64(row.PostId)
		if out[postId] == nil {
			out[postId] = chatty.PostLols{}
		}
		out[postId][tag] = int(row.Total)
	}
	return out, nil
}
