package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/campuskit/campuskit-go/agent"
	"github.com/campuskit/campuskit-go/internal/store"
)

func main() {
	ctx := context.Background()

	client := openai.NewClient(option.WithAPIKey(os.Getenv("OPENAI_API_KEY")))

	var sessions store.SessionRepository
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := mongoClient.Disconnect(ctx); err != nil {
				log.Printf("mongodb disconnect: %v", err)
			}
		}()
		sessions = store.NewMongoSessionRepository(mongoClient.Database(getMongoDB()), "sessions")
	} else {
		sessions = store.NewMemorySessionRepository()
	}

	calendar := agent.NewMemoryCalendar()
	directory := seedDirectory()
	a := agent.New(client, calendar, directory, sessions, agent.WithModel(getModel()))

	http.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			http.Error(w, "session_id is required", http.StatusBadRequest)
			return
		}

		if r.Method == http.MethodDelete {
			if err := a.ClearSession(r.Context(), sessionID); err != nil {
				http.Error(w, "clear session", http.StatusInternalServerError)
			}
			return
		}

		history, err := sessions.Load(r.Context(), sessionID)
		if err != nil {
			http.Error(w, "get session", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(history)
	})

	http.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			SessionID string `json:"session_id"`
			Prompt    string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.SessionID == "" {
			http.Error(w, "session_id is required", http.StatusBadRequest)
			return
		}
		if req.Prompt == "" {
			http.Error(w, "prompt is required", http.StatusBadRequest)
			return
		}

		answer, err := a.Send(r.Context(), req.SessionID, req.Prompt)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(map[string]string{"answer": answer})
	})

	log.Printf("agent-api listening on :%s", getHttpPort())
	log.Fatal(http.ListenAndServe(":"+getHttpPort(), nil))
}

func seedDirectory() *agent.MemoryDirectory {
	directory := agent.NewMemoryDirectory()
	directory.Students["A001"] = agent.Student{ID: "A001", Name: "Ana Torres", Email: "ana.torres@example.edu", Career: "Industrial Engineering"}
	directory.Students["A002"] = agent.Student{ID: "A002", Name: "Luis Mendoza", Email: "luis.mendoza@example.edu", Career: "Computer Science"}
	directory.Enrollments["A001"] = []agent.Enrollment{
		{CourseID: "MAT201", CourseName: "Linear Algebra", Schedule: "Mon/Wed 10:00"},
		{CourseID: "FIS102", CourseName: "Mechanics", Schedule: "Tue/Thu 12:00"},
	}
	directory.Loans["A001"] = []agent.Loan{
		{Title: "Calculus, Vol. 1", DueDate: "2025-09-30", Status: "on loan"},
	}
	return directory
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
		port = "8080"
	}

	return port
}

func getMongoDB() string {
	db := os.Getenv("MONGODB_DB")
	if db == "" {
		db = "agent_sessions"
	}

	return db
}
