package memorize

import (
	"bytes"
	"context"
	"fmt"

	"github.com/corewell/memoryd/internal/blob"
	"github.com/corewell/memoryd/internal/extract"
	"github.com/corewell/memoryd/internal/llm"
	"github.com/corewell/memoryd/internal/memcore"
	"github.com/corewell/memoryd/internal/memerr"
	"github.com/corewell/memoryd/internal/workflow"
)

const defaultPreprocessPrompt = "Summarize the following content into a concise caption suitable for later retrieval."

// NewPreprocessMultimodalStep branches by modality: conversation/document
// content is chunked (implicitly, via extract.Extract's plain text
// output) and summarized; audio is transcribed then treated as document
// text; image is captioned directly; video is sampled into frames, each
// frame is captioned separately and the captions are joined. All branches funnel through the
// preprocess_llm_profile's chat client.
func NewPreprocessMultimodalStep(deps Deps) workflow.Step {
	return workflow.Step{
		ID:           "preprocess_multimodal",
		Requires:     []string{KeyResource, KeyBlob},
		Produces:     []string{KeyCaption},
		Capabilities: []string{"llm", "vision"},
		Handler: func(ctx context.Context, state *workflow.State) error {
			resourceVal, _ := state.Get(KeyResource)
			blobVal, _ := state.Get(KeyBlob)
			promptVal, _ := state.Get(KeySummaryPrompt)

			resource := resourceVal.(*memcore.Resource)
			b := blobVal.(*blob.Blob)
			customPrompt, _ := promptVal.(string)

			profileName := deps.Config.PreprocessLLMProfile
			if profileName == "" {
				profileName = "default"
			}
			client, err := deps.LLM.Get(profileName)
			if err != nil {
				return err
			}

			instruction := customPrompt
			if instruction == "" {
				if p, ok := deps.Config.MultimodalPreprocessPrompts[string(resource.Modality)]; ok && p != "" {
					instruction = p
				} else {
					instruction = defaultPreprocessPrompt
				}
			}

			var caption string
			switch resource.Modality {
			case memcore.ModalityImage, memcore.ModalityVideo, memcore.ModalityAudio:
				caption, err = extract.Extract(ctx, b.ContentType, bytes.NewReader(b.Data), llm.AsCaptioner(client))
				if err != nil {
					return memerr.Wrap(memerr.ExtractionFailed, "caption media", err)
				}
				if resource.Modality == memcore.ModalityAudio {
					// Transcript is document-like text; run it back through
					// the summarizer the way a document would be handled.
					caption, err = client.Summarize(ctx, caption, instruction)
					if err != nil {
						return memerr.Wrap(memerr.SummarizationFailed, "summarize transcript", err)
					}
				}
			default: // conversation, document
				text, err := extract.Extract(ctx, b.ContentType, bytes.NewReader(b.Data), nil)
				if err != nil {
					return memerr.Wrap(memerr.ExtractionFailed, "extract document text", err)
				}
				caption, err = client.Summarize(ctx, text, instruction)
				if err != nil {
					return memerr.Wrap(memerr.SummarizationFailed, "summarize document", err)
				}
			}

			resource.Caption = caption
			if err := deps.Repos.Resources.Update(ctx, resource); err != nil {
				return memerr.Wrap(memerr.SummarizationFailed, fmt.Sprintf("persist caption for %q", resource.ID), err)
			}

			state.Set(KeyCaption, caption)
			return nil
		},
	}
}
