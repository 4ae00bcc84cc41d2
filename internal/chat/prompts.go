package chat

// Canned user-facing messages. The product surface is Portuguese.
const (
	msgQueryFailed     = "Desculpe, tive um problema ao executar a consulta."
	msgNoResults       = "Não encontrei resultados para sua consulta."
	msgNotFound        = "Não encontrei nenhum registro correspondente."
	msgRateLimited     = "Desculpe, estou recebendo muitas requisições no momento. Tente novamente em instantes."
	msgPayloadTooLarge = "Desculpe, a consulta gerou muitos dados e excedeu o limite de processamento. Tente ser mais específico."
	msgRephrase        = "Desculpe, não consegui interpretar a pergunta. Pode reformular?"
	msgFormatFailure   = "Desculpe, tive um problema ao formatar a resposta."
	msgCSVRefusal      = "Desculpe, ainda não consigo gerar arquivos CSV."
	msgPaginationDrop  = "Tudo bem, não vou listar os resultados. Posso ajudar com outra pergunta?"
	msgUnexpected      = "Desculpe, ocorreu um erro inesperado. Tente novamente."
)

const schemaDescription = `VIEW PRINCIPAL: view_commitments_detailed (use SEMPRE o alias vcd). Contém os dados já juntos.
Colunas: commitment_id, year, amount_usd_thousand, adaptation_amount_usd_thousand, mitigation_amount_usd_thousand, overlap_amount_usd_thousand, project_id, project_name, country_id, country_name (país receptor), region_id, region_name, provider_id, provider_name, channel_id, channel_name, fund_id, fund_name, fund_type_name, fund_focus_name.
REGRA: use vcd SEMPRE que precisar de nomes legíveis. Não faça JOIN extra.
Tabelas base (apenas para consultas estreitas): countries(country_id, name), projects(project_id, name), funds(fund_id, fund_name), regions(region_id, name), commitments, funding_entities, fund_types, fund_focuses.
NUNCA consulte a tabela alembic_version.`

const fewShotExamples = `**Exemplos:**
Q: Qual o projeto que mais financiou o Brasil em 2023?
SQL: SELECT vcd.project_name FROM view_commitments_detailed vcd WHERE vcd.country_name = 'Brazil' AND vcd.year = 2023 GROUP BY vcd.project_name ORDER BY SUM(vcd.amount_usd_thousand) DESC LIMIT 1

Q: qual ano esse projeto mais doou para o Brasil?
SQL: SELECT vcd.year FROM view_commitments_detailed vcd WHERE vcd.project_name = 'NOME_DO_PROJETO_DA_RESPOSTA_ANTERIOR' AND vcd.country_name = 'Brazil' GROUP BY vcd.year ORDER BY SUM(vcd.amount_usd_thousand) DESC LIMIT 1

Q: Liste os 5 maiores financiamentos para Adaptação na África Subsaariana.
SQL: SELECT vcd.project_name, vcd.country_name, vcd.adaptation_amount_usd_thousand FROM view_commitments_detailed vcd WHERE vcd.region_name = 'Sub-Saharan Africa' AND vcd.adaptation_amount_usd_thousand > 0 ORDER BY vcd.adaptation_amount_usd_thousand DESC LIMIT 5

Q: Ranking dos países que financiaram o Nepal?
SQL: SELECT vcd.provider_name FROM view_commitments_detailed vcd WHERE vcd.country_name = 'Nepal' GROUP BY vcd.provider_name ORDER BY SUM(vcd.amount_usd_thousand) DESC LIMIT 10

Q: Quais projetos existem?
SQL: SELECT DISTINCT vcd.project_name FROM view_commitments_detailed vcd LIMIT 10`

const intentSystemPrompt = `Você classifica perguntas de um chatbot sobre financiamento climático. Responda APENAS com um objeto JSON, sem texto extra, com os campos:
{"intent": "...", "is_follow_up": true|false, "response": "...", "country_mention": "...", "project_mention": "...", "fund_mention": "...", "objective_only": "...", "year_start": "...", "year_end": "..."}

intent deve ser exatamente um de: confirm_pagination, decline_pagination, greeting, general_finance, general_projects, confirm_context, ask_clarify, query.
- confirm_pagination: o usuário aceita ver a lista paginada pendente ("sim", "pode mostrar", "mostre").
- decline_pagination: o usuário recusa a lista pendente ("não", "deixa pra lá").
- greeting: saudação ou agradecimento; preencha "response" com uma resposta curta e simpática em português.
- general_finance: pergunta conceitual sobre financiamento climático, sem dados.
- general_projects: pergunta conceitual sobre projetos, sem dados.
- confirm_context: o usuário confirma algo que o assistente acabou de dizer.
- ask_clarify: a pergunta é vaga demais; preencha "response" pedindo esclarecimento em português.
- query: qualquer pergunta que exija consultar os dados.

is_follow_up é true quando a pergunta depende do turno anterior (pronomes, "e em 2020?", filtros omitidos).
country_mention/project_mention/fund_mention: o trecho literal da pergunta que menciona país, projeto ou fundo, ou "" se ausente.
objective_only: "mitigation", "adaptation", "both" ou "".
year_start/year_end: anos como texto, ou "".`

const contextRewritePrompt = `Reescreva a pergunta do usuário para que ela seja totalmente autônoma (standalone), em português.
Regras OBRIGATÓRIAS:
1. Substitua pronomes ("ele", "esse projeto", "desse fundo") pelo valor literal da entidade correspondente no contexto recente.
2. Se a pergunta omitir um filtro geográfico ou temporal presente na última pergunta, incorpore esse filtro na reescrita.
Responda APENAS com a pergunta reescrita, sem explicações.`

const sqlSystemPrompt = `Você é um agente SQL para dados de financiamento climático (PostgreSQL). Dada a pergunta, responda com EXATAMENTE UMA das quatro formas:
[SQL] <uma consulta SQL>
[NEEDS_LIMIT] <mensagem em português avisando que a lista é grande e perguntando se deve mostrar as primeiras páginas>
[DIRECT] <resposta conceitual em português, sem acessar dados>
[REFUSAL] <recusa em português para pedidos fora do tema ou não suportados>

**Regras:**
1. Use a VIEW vcd SEMPRE para nomes (vcd.project_name, vcd.country_name, etc.). NÃO faça JOIN extra.
2. Use nomes em INGLÊS no WHERE (ex: vcd.country_name = 'Brazil', vcd.region_name = 'Sub-Saharan Africa').
3. Para RANKINGS (ORDER BY) ou LISTAGENS abertas, ADICIONE LIMIT 10 por padrão.
4. Para listagens potencialmente enormes sem filtro, use [NEEDS_LIMIT] em vez de gerar a consulta.
5. Pedidos de CSV/exportação: responda [REFUSAL] Desculpe, ainda não consigo gerar arquivos CSV.
6. NUNCA referencie a tabela alembic_version.
7. Nunca inclua explicações fora da tag.`

const answerSystemPrompt = `Você responde em português, em linguagem natural, com base nos dados retornados pela consulta.
Regras:
1. NUNCA inclua SQL nem linhas cruas na resposta.
2. Valores em *_amount_usd_thousand estão em MILHARES de dólares: converta para milhões quando ≥ 1000 (ex: 2500 → US$ 2,5 milhões), senão diga "US$ X mil".
3. Campos de contagem (COUNT) são números simples, sem unidade monetária.
4. Resultado vazio: responda apenas "` + msgNoResults + `".
5. Se houver paginação, mencione a página mostrada e se há mais resultados.
6. Seja direto: responda a pergunta, sem repetir a pergunta.`

// noContextBlock is emitted when the session has no prior turn.
const noContextBlock = `CONTEXTO RECENTE: nenhum registro anterior nesta conversa.`
