package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/campuskit/campuskit-go/extract"
)

const maxUploadBytes = 32 << 20

func main() {
	client := openai.NewClient(option.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
	extractor := extract.New(client, extract.WithModel(getModel()))

	http.HandleFunc("/api/extract_info", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart request")
			return
		}

		var images [][]byte
		for _, files := range r.MultipartForm.File {
			for _, header := range files {
				file, err := header.Open()
				if err != nil {
					writeError(w, http.StatusBadRequest, "failed to read uploaded file")
					return
				}
				data, err := io.ReadAll(file)
				file.Close()
				if err != nil {
					writeError(w, http.StatusBadRequest, "failed to read uploaded file")
					return
				}
				images = append(images, data)
			}
		}
		if len(images) == 0 {
			writeError(w, http.StatusBadRequest, "Please upload at least one image file")
			return
		}

		info, err := extractor.Extract(r.Context(), images)
		if err != nil {
			log.Printf("extract: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	})

	log.Printf("extract-api listening on :%s", getHttpPort())
	log.Fatal(http.ListenAndServe(":"+getHttpPort(), nil))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func getModel() string {
	model := os.Getenv("MODEL")
	if model == "" {
		model = "gpt-4o"
	}

	return model
}

func getHttpPort() string {
	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "7071"
	}

	return port
}
